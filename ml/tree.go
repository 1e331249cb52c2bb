package ml

import (
	"errors"
	"fmt"
)

// TreeNode is one node of a regression tree. Children are indices into
// the tree's node slice.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// RegressionTree walks rows left when feature <= threshold.
type RegressionTree struct {
	nodes []TreeNode
}

// NewRegressionTree wraps nodes in pre-order, root first.
func NewRegressionTree(nodes []TreeNode) *RegressionTree {
	return &RegressionTree{nodes: nodes}
}

// Predict walks row from the root to a leaf and returns its value.
func (rt *RegressionTree) Predict(row []float64) (float64, error) {
	if len(rt.nodes) == 0 {
		return 0, errors.New("empty tree")
	}
	idx := 0
	// A well-formed tree reaches a leaf in at most len(nodes) steps.
	for steps := 0; steps <= len(rt.nodes); steps++ {
		node := rt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(row) {
			return 0, errors.New("feature index out of range")
		}
		if row[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(rt.nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
	return 0, errors.New("tree contains a cycle")
}

// check verifies node links against the row width.
func (rt *RegressionTree) check(width int) error {
	if len(rt.nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, node := range rt.nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= width {
			return fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if node.LeftChild <= i || node.LeftChild >= len(rt.nodes) {
			return fmt.Errorf("node %d: invalid left child %d", i, node.LeftChild)
		}
		if node.RightChild <= i || node.RightChild >= len(rt.nodes) {
			return fmt.Errorf("node %d: invalid right child %d", i, node.RightChild)
		}
	}
	return nil
}

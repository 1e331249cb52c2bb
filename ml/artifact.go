package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Model types an artifact may declare.
const (
	ModelDecisionTree     = "decision_tree"
	ModelRandomForest     = "random_forest"
	ModelGradientBoosting = "gradient_boosting"
)

// ErrArtifactNotFound is wrapped when the artifact file does not exist.
var ErrArtifactNotFound = errors.New("model artifact not found")

// ArtifactLoadError reports an artifact that exists but cannot be used.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load model artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// Artifact is the serialized form exported by the training pipeline.
type Artifact struct {
	ModelType    string       `json:"model_type"`
	FeatureNames []string     `json:"feature_names"`
	BaseScore    float64      `json:"base_score"`
	LearningRate float64      `json:"learning_rate"`
	Trees        [][]TreeNode `json:"trees"`
}

// Ensemble combines regression trees the way the artifact's model type
// prescribes.
type Ensemble struct {
	modelType    string
	baseScore    float64
	learningRate float64
	trees        []*RegressionTree
}

// Predict combines the tree outputs for one row.
func (e *Ensemble) Predict(row []float64) (float64, error) {
	var sum float64
	for i, tree := range e.trees {
		v, err := tree.Predict(row)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	switch e.modelType {
	case ModelRandomForest:
		return sum / float64(len(e.trees)), nil
	case ModelGradientBoosting:
		return e.baseScore + e.learningRate*sum, nil
	default:
		return sum, nil
	}
}

// ModelType returns the artifact's declared type.
func (e *Ensemble) ModelType() string { return e.modelType }

// TreeCount returns the number of trees.
func (e *Ensemble) TreeCount() int { return len(e.trees) }

// LoadArtifact reads and decodes the artifact at path.
func LoadArtifact(path string) (*Ensemble, []string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, nil, &ArtifactLoadError{Path: path, Err: err}
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, nil, &ArtifactLoadError{Path: path, Err: err}
	}
	ensemble, err := artifact.Build()
	if err != nil {
		return nil, nil, &ArtifactLoadError{Path: path, Err: err}
	}
	return ensemble, append([]string(nil), artifact.FeatureNames...), nil
}

// Build validates the artifact and assembles its ensemble.
func (a *Artifact) Build() (*Ensemble, error) {
	switch a.ModelType {
	case ModelDecisionTree:
		if len(a.Trees) != 1 {
			return nil, fmt.Errorf("decision_tree needs exactly one tree, got %d", len(a.Trees))
		}
	case ModelRandomForest, ModelGradientBoosting:
		if len(a.Trees) == 0 {
			return nil, fmt.Errorf("%s has no trees", a.ModelType)
		}
	default:
		return nil, fmt.Errorf("unsupported model type %q", a.ModelType)
	}

	if len(a.FeatureNames) == 0 {
		return nil, errors.New("feature_names is empty")
	}
	seen := make(map[string]bool, len(a.FeatureNames))
	for _, name := range a.FeatureNames {
		if _, ok := lookupField(name); !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate feature %q", name)
		}
		seen[name] = true
	}

	ensemble := &Ensemble{
		modelType:    a.ModelType,
		baseScore:    a.BaseScore,
		learningRate: a.LearningRate,
		trees:        make([]*RegressionTree, len(a.Trees)),
	}
	if ensemble.learningRate == 0 {
		ensemble.learningRate = 1
	}
	for i, nodes := range a.Trees {
		tree := NewRegressionTree(nodes)
		if err := tree.check(len(a.FeatureNames)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		ensemble.trees[i] = tree
	}
	return ensemble, nil
}

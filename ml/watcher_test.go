package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatcher loads a decision tree at path and watches it until the test ends.
func startWatcher(t *testing.T, path string) *Host {
	t.Helper()
	writeArtifact(t, path, Artifact{ModelType: ModelDecisionTree, FeatureNames: FeatureNames(), Trees: [][]TreeNode{hourTree(40, 320)}})
	host := NewHost(path, nil)
	if err := host.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	watcher := NewWatcher(host, nil)
	watcher.debounce = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("watcher returned error: %v", err)
		}
	})

	// Let the watcher register before touching the file.
	time.Sleep(100 * time.Millisecond)
	return host
}

func writeForest(t *testing.T, path string) {
	t.Helper()
	writeArtifact(t, path, Artifact{
		ModelType:    ModelRandomForest,
		FeatureNames: FeatureNames(),
		Trees:        [][]TreeNode{hourTree(1, 2), hourTree(3, 4)},
	})
}

func waitForModelType(t *testing.T, host *Host, modelType string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if host.Info().ModelType == modelType {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("model was not reloaded as %s, info %+v", modelType, host.Info())
}

func TestWatcherReloadsArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	host := startWatcher(t, path)
	writeForest(t, path)
	waitForModelType(t, host, ModelRandomForest)
}

func TestWatcherKeepsModelOnCorruptRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	host := startWatcher(t, path)
	gen := host.Generation()

	if err := os.WriteFile(path, []byte(`{"model_type":`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if !host.IsAvailable() || host.Info().ModelType != ModelDecisionTree || host.Generation() != gen {
		t.Fatalf("corrupt rewrite replaced the model, info %+v", host.Info())
	}
	if v, err := host.Infer(FeatureVector{Hr: 17}); err != nil || v != 320 {
		t.Fatalf("previous model not serving: %v, %v", v, err)
	}

	writeForest(t, path)
	waitForModelType(t, host, ModelRandomForest)
}

func TestWatcherReloadsAfterDeleteAndRecreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	host := startWatcher(t, path)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if !host.IsAvailable() {
		t.Fatal("deleting the artifact unloaded the model")
	}

	writeForest(t, path)
	waitForModelType(t, host, ModelRandomForest)
}

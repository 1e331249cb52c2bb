package ml

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrModelUnavailable is returned while no model handle is loaded.
var ErrModelUnavailable = errors.New("model not loaded")

// ModelInfo describes the currently loaded handle.
type ModelInfo struct {
	Loaded    bool      `json:"loaded"`
	ModelType string    `json:"model_type,omitempty"`
	Trees     int       `json:"trees,omitempty"`
	Features  []string  `json:"features,omitempty"`
	Path      string    `json:"path"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
}

type handle struct {
	model    Regressor
	features []string
	info     ModelInfo
}

// Host owns the model handle. The handle is replaced as a whole, so
// concurrent Infer calls never see a partially updated model.
type Host struct {
	path   string
	logger *zap.Logger
	model  atomic.Pointer[handle]
	gen    atomic.Uint64

	mu     sync.Mutex
	onSwap []func()
}

// NewHost returns an empty host for the artifact at path. Call Load to
// install the model.
func NewHost(path string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{path: path, logger: logger.Named("model")}
}

// Path returns the configured artifact location.
func (h *Host) Path() string { return h.path }

// Load decodes the artifact and swaps it in. On failure the current handle
// is kept and the error is logged and returned; callers are expected to
// carry on serving.
func (h *Host) Load() error {
	ensemble, features, err := LoadArtifact(h.path)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			h.logger.Warn("model artifact not found, predictions disabled until it is provided",
				zap.String("path", h.path))
		} else {
			h.logger.Error("failed to load model artifact", zap.String("path", h.path), zap.Error(err))
		}
		return err
	}

	h.store(&handle{
		model:    ensemble,
		features: features,
		info: ModelInfo{
			Loaded:    true,
			ModelType: ensemble.ModelType(),
			Trees:     ensemble.TreeCount(),
			Features:  features,
			Path:      h.path,
			LoadedAt:  time.Now(),
		},
	})
	h.logger.Info("model loaded",
		zap.String("path", h.path),
		zap.String("model_type", ensemble.ModelType()),
		zap.Int("trees", ensemble.TreeCount()))
	return nil
}

// Swap installs an already constructed model.
func (h *Host) Swap(model Regressor, features []string) error {
	if model == nil {
		return errors.New("nil model")
	}
	for _, name := range features {
		if _, ok := lookupField(name); !ok {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	names := append([]string(nil), features...)
	h.store(&handle{
		model:    model,
		features: names,
		info: ModelInfo{
			Loaded:   true,
			Features: names,
			Path:     h.path,
			LoadedAt: time.Now(),
		},
	})
	return nil
}

// OnSwap registers fn to run after every successful handle replacement.
func (h *Host) OnSwap(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSwap = append(h.onSwap, fn)
}

// store bumps the generation before the hooks run, so a result computed on
// the previous handle is never written back into a purged cache.
func (h *Host) store(next *handle) {
	h.model.Store(next)
	h.gen.Add(1)
	h.mu.Lock()
	hooks := append([]func(){}, h.onSwap...)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Generation counts successful handle replacements.
func (h *Host) Generation() uint64 {
	return h.gen.Load()
}

// IsAvailable reports whether a model handle is loaded.
func (h *Host) IsAvailable() bool {
	return h.model.Load() != nil
}

// Info returns a snapshot of the loaded handle.
func (h *Host) Info() ModelInfo {
	current := h.model.Load()
	if current == nil {
		return ModelInfo{Path: h.path}
	}
	return current.info
}

// Infer runs the model on a single row built in training column order.
func (h *Host) Infer(fv FeatureVector) (float64, error) {
	current := h.model.Load()
	if current == nil {
		return 0, ErrModelUnavailable
	}
	row, err := fv.Row(current.features)
	if err != nil {
		return 0, err
	}
	return current.model.Predict(row)
}

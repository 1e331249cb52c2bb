package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// StatusSuccess is the only status a PredictionResult carries.
const StatusSuccess = "success"

// ErrInferenceFailure is matched by every *InferenceError.
var ErrInferenceFailure = errors.New("inference failure")

// InferenceError wraps whatever the model raised while predicting.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool { return target == ErrInferenceFailure }

// PredictionResult is the response contract of a successful prediction.
type PredictionResult struct {
	Prediction int    `json:"prediction"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// PredictionRecord is handed to observers after each successful prediction.
type PredictionRecord struct {
	Features FeatureVector
	Raw      float64
	Result   PredictionResult
	Latency  time.Duration
	Cached   bool
	At       time.Time
}

// Observer receives successful predictions. Errors are logged only.
type Observer interface {
	ObservePrediction(ctx context.Context, rec PredictionRecord) error
}

// ModelBackend is the part of Host the service depends on.
type ModelBackend interface {
	IsAvailable() bool
	Infer(fv FeatureVector) (float64, error)
}

type swapNotifier interface {
	OnSwap(fn func())
}

// generational backends let the cache skip results from a replaced model.
type generational interface {
	Generation() uint64
}

// Service runs validation, inference and output shaping.
type Service struct {
	backend   ModelBackend
	logger    *zap.Logger
	cache     *lru.Cache[FeatureVector, float64]
	observers []Observer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache keeps up to size raw outputs keyed by feature vector. A size
// of zero or less disables caching.
func WithCache(size int) ServiceOption {
	return func(s *Service) {
		if size <= 0 {
			s.cache = nil
			return
		}
		cache, err := lru.New[FeatureVector, float64](size)
		if err != nil {
			return
		}
		s.cache = cache
	}
}

// WithObserver adds o to the observers notified after each prediction.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// NewService builds a service over backend. When backend can announce
// model swaps, the cache is purged on each one.
func NewService(backend ModelBackend, opts ...ServiceOption) *Service {
	s := &Service{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("predict")
	if s.cache != nil {
		if n, ok := backend.(swapNotifier); ok {
			cache := s.cache
			n.OnSwap(cache.Purge)
		}
	}
	return s
}

// Predict validates raw JSON and returns the shaped prediction.
func (s *Service) Predict(ctx context.Context, raw []byte) (PredictionResult, error) {
	fv, err := ParseFeatures(raw)
	if err != nil {
		return PredictionResult{}, err
	}
	return s.PredictFeatures(ctx, fv)
}

// PredictFeatures runs an already validated vector through the model.
func (s *Service) PredictFeatures(ctx context.Context, fv FeatureVector) (PredictionResult, error) {
	if !s.backend.IsAvailable() {
		return PredictionResult{}, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return PredictionResult{}, err
	}

	start := time.Now()
	raw, cached, err := s.infer(fv)
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			return PredictionResult{}, err
		}
		s.logger.Error("inference failed", zap.Error(err))
		return PredictionResult{}, &InferenceError{Err: err}
	}

	count := ShapePrediction(raw)
	result := PredictionResult{
		Prediction: count,
		Status:     StatusSuccess,
		Message:    fmt.Sprintf("Predicted %d bike rentals", count),
	}

	rec := PredictionRecord{
		Features: fv,
		Raw:      raw,
		Result:   result,
		Latency:  time.Since(start),
		Cached:   cached,
		At:       time.Now(),
	}
	for _, o := range s.observers {
		if err := o.ObservePrediction(ctx, rec); err != nil {
			s.logger.Warn("prediction observer failed", zap.Error(err))
		}
	}
	return result, nil
}

func (s *Service) infer(fv FeatureVector) (raw float64, cached bool, err error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(fv); ok {
			return v, true, nil
		}
	}

	gb, tracked := s.backend.(generational)
	var gen uint64
	if tracked {
		gen = gb.Generation()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	raw, err = s.backend.Infer(fv)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false, fmt.Errorf("model returned non-finite value %v", raw)
	}
	if s.cache != nil && (!tracked || gb.Generation() == gen) {
		s.cache.Add(fv, raw)
	}
	return raw, false, nil
}

// ShapePrediction rounds half away from zero and then floors at zero.
// Demand cannot be negative. Values beyond the int range saturate.
func ShapePrediction(raw float64) int {
	r := math.Round(raw)
	if r <= 0 {
		return 0
	}
	if r >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(r)
}

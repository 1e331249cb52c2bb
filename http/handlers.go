package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"bikedemand/db"
	"bikedemand/ml"
	"go.uber.org/zap"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const maxRecentLimit = 500

// Predictor turns a raw request body into a shaped prediction.
type Predictor interface {
	Predict(ctx context.Context, raw []byte) (ml.PredictionResult, error)
}

// ModelStatus reports on the loaded model.
type ModelStatus interface {
	IsAvailable() bool
	Info() ml.ModelInfo
}

// PredictionLog lists previously served predictions.
type PredictionLog interface {
	RecentPredictions(ctx context.Context, limit int) ([]db.PredictionEntry, error)
}

// Dependencies are the collaborators the routes are served from. Log,
// Feed, Metrics and Requests are optional.
type Dependencies struct {
	Predictor   Predictor
	Model       ModelStatus
	Log         PredictionLog
	Feed        http.Handler
	Metrics     http.Handler
	Requests    RequestObserver
	FrontendDir string
	Logger      *zap.Logger
}

type api struct {
	Dependencies
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error      string          `json:"error"`
	Detail     string          `json:"detail"`
	Violations []ml.FieldError `json:"violations,omitempty"`
}

// RegisterHandlers mounts every route on mux. API routes are wrapped with
// apiMiddleware; the websocket feed is not, since it outlives any timeout.
func RegisterHandlers(mux *http.ServeMux, deps Dependencies, predictMiddleware, apiMiddleware Middleware) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &api{Dependencies: deps}
	if predictMiddleware == nil {
		predictMiddleware = Chain()
	}
	if apiMiddleware == nil {
		apiMiddleware = Chain()
	}
	wrap := func(h http.HandlerFunc) http.Handler { return apiMiddleware(h) }

	mux.Handle("GET /health", wrap(a.handleHealth))
	mux.Handle("POST /predict", apiMiddleware(predictMiddleware(http.HandlerFunc(a.handlePredict))))
	mux.Handle("GET /api/features", wrap(a.handleFeatures))
	mux.Handle("GET /api/model", wrap(a.handleModel))
	mux.Handle("GET /api/predictions/recent", wrap(a.handleRecent))

	mux.Handle("GET /{$}", wrap(a.handleIndex))
	mux.Handle("GET /style.css", wrap(a.assetHandler("style.css", "text/css; charset=utf-8", "CSS file not found")))
	mux.Handle("GET /script.js", wrap(a.assetHandler("script.js", "application/javascript", "JavaScript file not found")))

	if deps.Feed != nil {
		mux.Handle("GET /api/ws/predictions", deps.Feed)
	}
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		ModelLoaded: a.Model.IsAvailable(),
		Version:     Version,
	})
}

func (a *api) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_input", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_input", "failed to read request body")
		return
	}

	result, err := a.Predictor.Predict(r.Context(), body)
	if err != nil {
		a.writePredictError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *api) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ml.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      "invalid_input",
			Detail:     verr.Error(),
			Violations: verr.Fields,
		})
	case errors.Is(err, ml.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable",
			"Model not loaded. Please run the training pipeline first to produce the model artifact.")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "timeout", "request timeout")
	default:
		a.Logger.Error("prediction failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "inference_failure", err.Error())
	}
}

func (a *api) handleFeatures(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ml.FeatureMetadata())
}

func (a *api) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.Model.Info())
}

func (a *api) handleRecent(w http.ResponseWriter, r *http.Request) {
	if a.Log == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "prediction log is disabled")
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = l
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	entries, err := a.Log.RecentPredictions(r.Context(), limit)
	if err != nil {
		a.Logger.Error("query prediction log failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to query prediction log")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(entries),
		"data":  entries,
	})
}

func (a *api) handleIndex(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(a.FrontendDir, "index.html")
	if a.FrontendDir == "" || !fileExists(path) {
		respondJSON(w, http.StatusOK, map[string]string{
			"message": "Bike Rental Prediction API",
			"docs":    "/api/features",
		})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, path)
}

func (a *api) assetHandler(name, contentType, missing string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(a.FrontendDir, name)
		if a.FrontendDir == "" || !fileExists(path) {
			respondJSON(w, http.StatusNotFound, map[string]string{"detail": missing})
			return
		}
		w.Header().Set("Content-Type", contentType)
		http.ServeFile(w, r, path)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func writeError(w http.ResponseWriter, status int, kind, detail string) {
	respondJSON(w, status, ErrorResponse{Error: kind, Detail: detail})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

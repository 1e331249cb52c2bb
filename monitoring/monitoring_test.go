package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bikedemand/ml"
	"github.com/gorilla/websocket"
)

func TestMetricsExposition(t *testing.T) {
	loaded := false
	m := NewMetrics(func() bool { return loaded })
	m.ObserveRequest(http.MethodPost, "/predict", http.StatusOK, 3*time.Millisecond)
	m.ObservePrediction(context.Background(), ml.PredictionRecord{Result: ml.PredictionResult{Prediction: 42}})
	m.ObservePrediction(context.Background(), ml.PredictionRecord{Result: ml.PredictionResult{Prediction: 42}, Cached: true})
	loaded = true

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`bike_http_requests_total{method="POST",path="/predict",status="200"} 1`,
		`bike_predictions_total{source="cache"} 1`,
		`bike_predictions_total{source="model"} 1`,
		`bike_model_loaded 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestHubBroadcastsPredictions(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.Clients())
	}

	rec := ml.PredictionRecord{
		Features: ml.FeatureVector{Season: 3, Hr: 17},
		Result:   ml.PredictionResult{Prediction: 250, Status: ml.StatusSuccess, Message: "Predicted 250 bike rentals"},
		At:       time.Now(),
	}
	if err := hub.ObservePrediction(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if msg.Type != "prediction" || msg.ID == "" {
		t.Fatalf("unexpected frame %+v", msg)
	}
	var event predictionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("invalid event: %v", err)
	}
	if event.Prediction != 250 || event.Features.Hr != 17 {
		t.Fatalf("unexpected event %+v", event)
	}
}

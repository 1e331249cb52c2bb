package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bikedemand/ml"
	_ "github.com/mattn/go-sqlite3"
)

// PredictionEntry is one row of the prediction log.
type PredictionEntry struct {
	ID         int64            `json:"id"`
	Features   ml.FeatureVector `json:"features"`
	Raw        float64          `json:"raw_output"`
	Prediction int              `json:"prediction"`
	Cached     bool             `json:"cached"`
	LatencyMS  float64          `json:"latency_ms"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Store is the sqlite-backed prediction log.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        season INTEGER NOT NULL,
        yr INTEGER NOT NULL,
        mnth INTEGER NOT NULL,
        hr INTEGER NOT NULL,
        holiday INTEGER NOT NULL,
        weekday INTEGER NOT NULL,
        workingday INTEGER NOT NULL,
        weathersit INTEGER NOT NULL,
        temp REAL NOT NULL,
        atemp REAL NOT NULL,
        hum REAL NOT NULL,
        windspeed REAL NOT NULL,
        raw_output REAL NOT NULL,
        prediction INTEGER NOT NULL,
        cached INTEGER DEFAULT 0,
        latency_ms REAL DEFAULT 0,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ObservePrediction appends a served prediction to the log.
func (s *Store) ObservePrediction(ctx context.Context, rec ml.PredictionRecord) error {
	f := rec.Features
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (season, yr, mnth, hr, holiday, weekday, workingday, weathersit,
            temp, atemp, hum, windspeed, raw_output, prediction, cached, latency_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Season, f.Yr, f.Mnth, f.Hr, f.Holiday, f.Weekday, f.Workingday, f.Weathersit,
		f.Temp, f.Atemp, f.Hum, f.Windspeed, rec.Raw, rec.Result.Prediction, rec.Cached,
		float64(rec.Latency.Microseconds())/1000, rec.At.UTC())
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

// RecentPredictions returns the newest entries first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, season, yr, mnth, hr, holiday, weekday, workingday, weathersit,
               temp, atemp, hum, windspeed, raw_output, prediction, cached, latency_ms, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]PredictionEntry, 0, limit)
	for rows.Next() {
		var e PredictionEntry
		f := &e.Features
		err := rows.Scan(&e.ID, &f.Season, &f.Yr, &f.Mnth, &f.Hr, &f.Holiday, &f.Weekday, &f.Workingday, &f.Weathersit,
			&f.Temp, &f.Atemp, &f.Hum, &f.Windspeed, &e.Raw, &e.Prediction, &e.Cached, &e.LatencyMS, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

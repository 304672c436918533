// Package runlog keeps a history of training runs in a SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openfluke/catnet/nn"
)

// ErrNotFound is returned by Get when no run has the given id.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Run is one recorded training run.
type Run struct {
	ID               string
	CreatedAt        time.Time
	ModelID          string
	Dims             nn.Dims
	HiddenActivation string
	LearningRate     float64
	Iterations       int
	FinalCost        float64
	TrainAccuracy    float64
	TestAccuracy     float64
	Costs            []nn.CostPoint
	Duration         time.Duration
	ModelPath        string
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the run database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		model_id TEXT NOT NULL,
		input_size INTEGER NOT NULL,
		hidden_size INTEGER NOT NULL,
		output_size INTEGER NOT NULL,
		hidden_activation TEXT NOT NULL,
		learning_rate REAL NOT NULL,
		iterations INTEGER NOT NULL,
		final_cost REAL NOT NULL,
		train_accuracy REAL NOT NULL,
		test_accuracy REAL NOT NULL,
		costs_json TEXT,
		duration_ms INTEGER NOT NULL,
		model_path TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores r, assigning an id and timestamp when they are empty.
// It returns the stored run.
func (s *Store) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Millisecond)

	costs, err := json.Marshal(r.Costs)
	if err != nil {
		return r, fmt.Errorf("marshal costs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, model_id, input_size, hidden_size, output_size,
			hidden_activation, learning_rate, iterations, final_cost, train_accuracy,
			test_accuracy, costs_json, duration_ms, model_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.Format(timeLayout), r.ModelID, r.Dims.Input, r.Dims.Hidden, r.Dims.Output,
		r.HiddenActivation, r.LearningRate, r.Iterations, r.FinalCost, r.TrainAccuracy,
		r.TestAccuracy, string(costs), r.Duration.Milliseconds(), r.ModelPath,
	)
	if err != nil {
		return r, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

const selectRun = `
	SELECT id, created_at, model_id, input_size, hidden_size, output_size,
		hidden_activation, learning_rate, iterations, final_cost, train_accuracy,
		test_accuracy, costs_json, duration_ms, model_path
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		created   string
		costsJSON sql.NullString
		modelPath sql.NullString
		duration  int64
	)
	err := sc.Scan(&r.ID, &created, &r.ModelID, &r.Dims.Input, &r.Dims.Hidden, &r.Dims.Output,
		&r.HiddenActivation, &r.LearningRate, &r.Iterations, &r.FinalCost, &r.TrainAccuracy,
		&r.TestAccuracy, &costsJSON, &duration, &modelPath)
	if err != nil {
		return r, err
	}
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return r, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, created, err)
	}
	if costsJSON.Valid && costsJSON.String != "" {
		if err := json.Unmarshal([]byte(costsJSON.String), &r.Costs); err != nil {
			return r, fmt.Errorf("run %s: bad costs: %w", r.ID, err)
		}
	}
	r.Duration = time.Duration(duration) * time.Millisecond
	r.ModelPath = modelPath.String
	return r, nil
}

// List returns the most recent runs first. limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRun + ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

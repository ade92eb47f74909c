// Package tracestore persists resolution traces and completed runs to
// SQLite so they survive process restarts and can be inspected later.
package tracestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rand/cascade/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed engine.TraceRecorder. Events recorded while
// a run is active are tagged with that run's ID.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	ownsDB bool
	runID  string
}

// Options configures a Store.
type Options struct {
	// Path to the database file. Empty means in-memory.
	Path string

	// DB is an existing connection to reuse. When set, Path is
	// ignored and Close leaves the connection open.
	DB *sql.DB
}

// Run is a persisted resolution run.
type Run struct {
	ID        string
	Question  string
	Answer    string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New opens (or creates) the trace database and applies the schema.
func New(opts Options) (*Store, error) {
	var db *sql.DB
	var ownsDB bool

	if opts.DB != nil {
		db = opts.DB
	} else {
		dsn := "file::memory:?cache=shared"
		if opts.Path != "" {
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
			dsn = "file:" + opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
		}
		var err error
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open trace database: %w", err)
		}
		ownsDB = true
	}

	if err := db.Ping(); err != nil {
		if ownsDB {
			db.Close()
		}
		return nil, fmt.Errorf("ping trace database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		if ownsDB {
			db.Close()
		}
		return nil, fmt.Errorf("init trace schema: %w", err)
	}

	return &Store{db: db, ownsDB: ownsDB}, nil
}

// Close closes the database if this store opened it.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun registers a new run and tags subsequent events with its ID.
func (s *Store) BeginRun(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, question, status, created_at, updated_at)
		VALUES (?, ?, 'running', ?, ?)
	`, id, question, now, now)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	s.runID = id
	return id, nil
}

// FinishRun records a run's outcome and clears the active run ID. The
// tree may be nil when the run failed.
func (s *Store) FinishRun(ctx context.Context, runID, answer string, tree *engine.Node, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "done"
	if runErr != nil {
		status = "failed"
		answer = runErr.Error()
	}

	var treeJSON sql.NullString
	if tree != nil {
		data, err := json.Marshal(tree)
		if err != nil {
			return fmt.Errorf("marshal tree: %w", err)
		}
		treeJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET answer = ?, tree_json = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, answer, treeJSON, status, time.Now().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if s.runID == runID {
		s.runID = ""
	}
	return nil
}

// RecordEvent implements engine.TraceRecorder.
func (s *Store) RecordEvent(event engine.TraceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	var runID sql.NullString
	if s.runID != "" {
		runID = sql.NullString{String: s.runID, Valid: true}
	}
	var parentID sql.NullString
	if event.ParentID != "" {
		parentID = sql.NullString{String: event.ParentID, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO trace_events (
			id, run_id, type, question, verdict, preview,
			depth, parent_id, tokens, duration_ns, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		runID,
		string(event.Type),
		event.Question,
		string(event.Verdict),
		event.Preview,
		event.Depth,
		parentID,
		event.Tokens,
		event.Duration.Nanoseconds(),
		event.Status,
		event.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert trace event: %w", err)
	}
	return nil
}

// Events returns a run's events in chronological order.
func (s *Store) Events(ctx context.Context, runID string, limit int) ([]engine.TraceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, question, verdict, preview, depth, parent_id,
		       tokens, duration_ns, status, created_at
		FROM trace_events
		WHERE run_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	defer rows.Close()

	var events []engine.TraceEvent
	for rows.Next() {
		var (
			event      engine.TraceEvent
			eventType  string
			verdict    sql.NullString
			preview    sql.NullString
			parentID   sql.NullString
			durationNs int64
			createdAt  int64
		)
		if err := rows.Scan(
			&event.ID, &eventType, &event.Question, &verdict, &preview,
			&event.Depth, &parentID, &event.Tokens, &durationNs, &event.Status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		event.Type = engine.TraceEventType(eventType)
		event.Verdict = engine.Complexity(verdict.String)
		event.Preview = preview.String
		event.ParentID = parentID.String
		event.Duration = time.Duration(durationNs)
		event.Timestamp = time.UnixMilli(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace events: %w", err)
	}
	return events, nil
}

// GetRun returns one run, or nil when the ID is unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, answer, status, created_at, updated_at
		FROM runs WHERE id = ?
	`, runID)

	var (
		run       Run
		answer    sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&run.ID, &run.Question, &answer, &run.Status, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Answer = answer.String
	run.CreatedAt = time.UnixMilli(createdAt)
	run.UpdatedAt = time.UnixMilli(updatedAt)
	return &run, nil
}

// GetTree returns a run's persisted recursion tree, or nil when the run
// has none recorded.
func (s *Store) GetTree(ctx context.Context, runID string) (*engine.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var treeJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT tree_json FROM runs WHERE id = ?`, runID,
	).Scan(&treeJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run tree: %w", err)
	}
	if !treeJSON.Valid || treeJSON.String == "" {
		return nil, nil
	}
	var tree engine.Node
	if err := json.Unmarshal([]byte(treeJSON.String), &tree); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	return &tree, nil
}

// RecentRuns lists runs newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer, status, created_at, updated_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			answer    sql.NullString
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&run.ID, &run.Question, &answer, &run.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Answer = answer.String
		run.CreatedAt = time.UnixMilli(createdAt)
		run.UpdatedAt = time.UnixMilli(updatedAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Stats aggregates event counts across all runs.
func (s *Store) Stats(ctx context.Context) (engine.TraceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := engine.TraceStats{EventsByType: make(map[engine.TraceEventType]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(MAX(depth), 0), COALESCE(SUM(duration_ns), 0)
		FROM trace_events
	`)
	var totalDurationNs int64
	if err := row.Scan(&stats.TotalEvents, &stats.TotalTokens, &stats.MaxDepth, &totalDurationNs); err != nil {
		return stats, fmt.Errorf("scan trace stats: %w", err)
	}
	stats.TotalDuration = time.Duration(totalDurationNs)

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM trace_events GROUP BY type`)
	if err != nil {
		return stats, fmt.Errorf("query event types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return stats, fmt.Errorf("scan event type: %w", err)
		}
		stats.EventsByType[engine.TraceEventType(eventType)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate event types: %w", err)
	}
	return stats, nil
}

var _ engine.TraceRecorder = (*Store)(nil)

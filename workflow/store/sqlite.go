package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dshills/agentgraph-go/workflow"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements workflow.CheckpointStore over a single SQLite
// file: WAL mode for concurrent readers, a single writer connection, and
// auto-migration on first use.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (creating if necessary) the SQLite database at
// path and ensures its schema exists. path may be ":memory:" for a
// transient database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS workflow_checkpoints (
	checkpoint_id    TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	superstep_index  INTEGER NOT NULL,
	data             TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_checkpoints_run ON workflow_checkpoints(run_id, superstep_index);
`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save implements workflow.CheckpointStore.
func (s *SQLiteStore) Save(c *workflow.WorkflowCheckpoint) (string, error) {
	id := checkpointID(c.RunID, c.SuperstepIndex)
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO workflow_checkpoints (checkpoint_id, run_id, superstep_index, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(checkpoint_id) DO UPDATE SET data = excluded.data`,
		id, c.RunID, c.SuperstepIndex, string(data), c.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}
	return id, nil
}

// Load implements workflow.CheckpointStore.
func (s *SQLiteStore) Load(checkpointID string) (*workflow.WorkflowCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRow(`SELECT data FROM workflow_checkpoints WHERE checkpoint_id = ?`, checkpointID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, &workflow.WorkflowCheckpointException{
			Code:    workflow.ErrCodeCheckpointNotFound,
			Message: fmt.Sprintf("no checkpoint %q", checkpointID),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}

	var cp workflow.WorkflowCheckpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// List implements workflow.CheckpointStore, returning ids in ascending
// superstep order.
func (s *SQLiteStore) List(runID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT checkpoint_id FROM workflow_checkpoints WHERE run_id = ? ORDER BY superstep_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan checkpoint id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dshills/agentgraph-go/workflow"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements workflow.CheckpointStore over a MySQL table,
// using a pooled connection and auto-migrating the single-table
// checkpoint schema on first use.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection using dsn (a standard
// go-sql-driver/mysql DSN) and ensures its schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables() error {
	const schema = `
CREATE TABLE IF NOT EXISTS workflow_checkpoints (
	checkpoint_id   VARCHAR(255) PRIMARY KEY,
	run_id          VARCHAR(255) NOT NULL,
	superstep_index INT NOT NULL,
	data            LONGTEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	INDEX idx_workflow_checkpoints_run (run_id, superstep_index)
) ENGINE=InnoDB;
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

// Save implements workflow.CheckpointStore.
func (s *MySQLStore) Save(c *workflow.WorkflowCheckpoint) (string, error) {
	id := checkpointID(c.RunID, c.SuperstepIndex)
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO workflow_checkpoints (checkpoint_id, run_id, superstep_index, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE data = VALUES(data)`,
		id, c.RunID, c.SuperstepIndex, string(data), c.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}
	return id, nil
}

// Load implements workflow.CheckpointStore.
func (s *MySQLStore) Load(checkpointID string) (*workflow.WorkflowCheckpoint, error) {
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
func (s *MySQLStore) List(runID string) ([]string, error) {
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

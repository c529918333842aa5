package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/task/models"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// SQLiteRepository provides SQLite-based task storage operations
type SQLiteRepository struct {
	db *sql.DB
}

// Ensure SQLiteRepository implements Repository interface
var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

// initSchema creates the database tables if they don't exist
func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		type TEXT DEFAULT 'other',
		state TEXT DEFAULT 'todo',
		priority INTEGER DEFAULT 3,
		acceptance TEXT DEFAULT '[]',
		assigned_to TEXT DEFAULT '',
		metadata TEXT DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		agent TEXT NOT NULL,
		type TEXT NOT NULL,
		task_id TEXT DEFAULT '',
		payload TEXT DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
	CREATE INDEX IF NOT EXISTS idx_events_task_id ON events(task_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateTask creates a new task
func (r *SQLiteRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}
	acceptance, err := json.Marshal(task.Acceptance)
	if err != nil {
		acceptance = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, state, priority, acceptance, assigned_to, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Title, task.Description, task.Type, task.State, task.Priority, string(acceptance), task.AssignedTo, string(metadata), task.CreatedAt, task.UpdatedAt)

	return err
}

// GetTask retrieves a task by ID
func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task := &models.Task{}
	var metadata, acceptance string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, type, state, priority, acceptance, assigned_to, metadata, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id).Scan(&task.ID, &task.Title, &task.Description, &task.Type, &task.State, &task.Priority, &acceptance, &task.AssignedTo, &metadata, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("task", id)
	}
	if err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(acceptance), &task.Acceptance)
	_ = json.Unmarshal([]byte(metadata), &task.Metadata)
	return task, nil
}

// UpdateTask updates an existing task
func (r *SQLiteRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()

	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}
	acceptance, err := json.Marshal(task.Acceptance)
	if err != nil {
		acceptance = []byte("[]")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, type = ?, state = ?, priority = ?, acceptance = ?, assigned_to = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, task.Title, task.Description, task.Type, task.State, task.Priority, string(acceptance), task.AssignedTo, string(metadata), task.UpdatedAt, task.ID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("task", task.ID)
	}
	return nil
}

// DeleteTask deletes a task by ID
func (r *SQLiteRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("task", id)
	}
	return nil
}

// ListTasks returns tasks, optionally filtered by state, ordered by
// priority (1 first) then creation time.
func (r *SQLiteRepository) ListTasks(ctx context.Context, state v1.TaskState) ([]*models.Task, error) {
	query := `
		SELECT id, title, description, type, state, priority, acceptance, assigned_to, metadata, created_at, updated_at
		FROM tasks`
	args := []interface{}{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY priority, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// scanTasks scans multiple task rows
func (r *SQLiteRepository) scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	result := []*models.Task{}
	for rows.Next() {
		task := &models.Task{}
		var metadata, acceptance string
		err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Type, &task.State, &task.Priority, &acceptance, &task.AssignedTo, &metadata, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(acceptance), &task.Acceptance)
		_ = json.Unmarshal([]byte(metadata), &task.Metadata)
		result = append(result, task)
	}
	return result, rows.Err()
}

// UpdateTaskState updates the state of a task
func (r *SQLiteRepository) UpdateTaskState(ctx context.Context, id string, state v1.TaskState) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tasks SET state = ?, updated_at = ? WHERE id = ?`, state, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("task", id)
	}
	return nil
}

// TaskStats counts tasks by state
func (r *SQLiteRepository) TaskStats(ctx context.Context) (*v1.TaskStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &v1.TaskStats{}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch v1.TaskState(state) {
		case v1.TaskStateTodo:
			stats.Todo = count
		case v1.TaskStateInProgress:
			stats.InProgress = count
		case v1.TaskStateDone:
			stats.Done = count
		case v1.TaskStateBlocked:
			stats.Blocked = count
		}
	}
	return stats, rows.Err()
}

// CreateEvent appends an event log entry
func (r *SQLiteRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		payload = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, agent, type, task_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, event.Agent, event.Type, event.TaskID, string(payload), event.CreatedAt)

	return err
}

// ListEvents returns the most recent events, newest first
func (r *SQLiteRepository) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agent, type, task_id, payload, created_at
		FROM events ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*models.Event{}
	for rows.Next() {
		event := &models.Event{}
		var payload string
		if err := rows.Scan(&event.ID, &event.Agent, &event.Type, &event.TaskID, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(payload), &event.Payload)
		result = append(result, event)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/task/models"
	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

// PostgresRepository provides PostgreSQL-based task storage using the pgx
// stdlib driver.
type PostgresRepository struct {
	db *sql.DB
}

// Ensure PostgresRepository implements Repository interface
var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(cfg config.DatabaseConfig) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &PostgresRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		type TEXT DEFAULT 'other',
		state TEXT DEFAULT 'todo',
		priority INTEGER DEFAULT 3,
		acceptance JSONB DEFAULT '[]',
		assigned_to TEXT DEFAULT '',
		metadata JSONB DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		agent TEXT NOT NULL,
		type TEXT NOT NULL,
		task_id TEXT DEFAULT '',
		payload JSONB DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
	CREATE INDEX IF NOT EXISTS idx_events_task_id ON events(task_id);
	`

	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// CreateTask creates a new task
func (r *PostgresRepository) CreateTask(ctx context.Context, task *models.Task) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, task.ID, task.Title, task.Description, task.Type, task.State, task.Priority, string(acceptance), task.AssignedTo, string(metadata), task.CreatedAt, task.UpdatedAt)

	return err
}

// GetTask retrieves a task by ID
func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task := &models.Task{}
	var metadata, acceptance string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, type, state, priority, acceptance, assigned_to, metadata, created_at, updated_at
		FROM tasks WHERE id = $1
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
func (r *PostgresRepository) UpdateTask(ctx context.Context, task *models.Task) error {
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
		UPDATE tasks SET title = $1, description = $2, type = $3, state = $4, priority = $5, acceptance = $6, assigned_to = $7, metadata = $8, updated_at = $9
		WHERE id = $10
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
func (r *PostgresRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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
func (r *PostgresRepository) ListTasks(ctx context.Context, state v1.TaskState) ([]*models.Task, error) {
	query := `
		SELECT id, title, description, type, state, priority, acceptance, assigned_to, metadata, created_at, updated_at
		FROM tasks`
	args := []interface{}{}
	if state != "" {
		query += ` WHERE state = $1`
		args = append(args, state)
	}
	query += ` ORDER BY priority, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
func (r *PostgresRepository) UpdateTaskState(ctx context.Context, id string, state v1.TaskState) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tasks SET state = $1, updated_at = $2 WHERE id = $3`, state, time.Now().UTC(), id)
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
func (r *PostgresRepository) TaskStats(ctx context.Context) (*v1.TaskStats, error) {
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
func (r *PostgresRepository) CreateEvent(ctx context.Context, event *models.Event) error {
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
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Agent, event.Type, event.TaskID, string(payload), event.CreatedAt)

	return err
}

// ListEvents returns the most recent events, newest first
func (r *PostgresRepository) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agent, type, task_id, payload, created_at
		FROM events ORDER BY created_at DESC LIMIT $1
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

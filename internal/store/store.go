package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hubresolver/internal/models"
)

var ErrNotFound = errors.New("task not found")

// Store persists tasks in sqlite, one row per task with the link list as a
// JSON column. Link merges run read-modify-write inside a transaction so
// sibling links terminating at the same time never erase each other.
type Store struct {
	db *sql.DB
	// Single in-process writer: sibling merges queue here instead of
	// racing sqlite's write lock inside deferred transactions.
	mu sync.Mutex
}

func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initTable(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		status TEXT NOT NULL,
		links TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) CreateTask(ctx context.Context, task models.Task) error {
	links, err := json.Marshal(task.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `INSERT INTO tasks (id, source_url, status, links, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, task.ID, task.SourceURL, task.Status, string(links), string(metadata), task.CreatedAt)
	return err
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT id, source_url, status, links, metadata, created_at, completed_at FROM tasks WHERE id = ?`
	return scanTask(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	query := `SELECT id, source_url, status, links, metadata, created_at, completed_at FROM tasks ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// MergeLinkResult folds one terminal link into its task's stored link list,
// keyed by index with the original URL as fallback, and recomputes the task
// status in the same transaction. Replaying the same terminal link is
// idempotent: the stored entry is replaced, not appended to. A task that was
// deleted meanwhile is silently skipped.
func (s *Store) MergeLinkResult(ctx context.Context, taskID string, link models.Link) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		task, err := lockTask(ctx, tx, taskID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		merged := false
		for i := range task.Links {
			if task.Links[i].Index == link.Index {
				task.Links[i] = link
				merged = true
				break
			}
		}
		if !merged {
			for i := range task.Links {
				if task.Links[i].OriginalURL == link.OriginalURL {
					task.Links[i] = link
					merged = true
					break
				}
			}
		}
		if !merged {
			task.Links = append(task.Links, link)
		}

		return writeTask(ctx, tx, task)
	})
}

// ResetLinks resets every retryable link of the task back to pending with a
// retry log entry. Done links are untouched. Returns the updated task, or
// ErrNotFound.
func (s *Store) ResetLinks(ctx context.Context, taskID string) (*models.Task, error) {
	var updated *models.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		task, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}

		for i := range task.Links {
			if !task.Links[i].Retryable() {
				continue
			}
			task.Links[i].Status = models.LinkPending
			task.Links[i].FinalURL = ""
			task.Links[i].Logs = append(task.Links[i].Logs, models.LogEntry{
				Message: "retry requested",
				Level:   models.LevelInfo,
			})
		}

		if err := writeTask(ctx, tx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	return updated, err
}

// MarkProcessing flips every pending link to processing before a resolve run
// claims them.
func (s *Store) MarkProcessing(ctx context.Context, taskID string) (*models.Task, error) {
	var updated *models.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		task, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		for i := range task.Links {
			if task.Links[i].Status == models.LinkPending {
				task.Links[i].Status = models.LinkProcessing
			}
		}
		if err := writeTask(ctx, tx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	return updated, err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockTask reads the task inside the transaction for read-modify-write.
func lockTask(ctx context.Context, tx *sql.Tx, id string) (*models.Task, error) {
	query := `SELECT id, source_url, status, links, metadata, created_at, completed_at FROM tasks WHERE id = ?`
	return scanTask(tx.QueryRowContext(ctx, query, id))
}

// writeTask stores the link list and the derived task status, stamping
// completed_at the first time every link is terminal.
func writeTask(ctx context.Context, tx *sql.Tx, task *models.Task) error {
	task.Status = models.DeriveTaskStatus(task.Links)

	if task.Status == models.TaskProcessing {
		task.CompletedAt = nil
	} else if task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	links, err := json.Marshal(task.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}

	var completedAt any
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}

	query := `UPDATE tasks SET links = ?, status = ?, completed_at = ? WHERE id = ?`
	_, err = tx.ExecContext(ctx, query, string(links), task.Status, completedAt, task.ID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task        models.Task
		links       string
		metadata    sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&task.ID, &task.SourceURL, &task.Status, &links, &metadata, &task.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(links), &task.Links); err != nil {
		return nil, fmt.Errorf("unmarshal links: %w", err)
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &task.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

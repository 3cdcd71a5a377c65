package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const itemColumns = `id, media_id, status, priority, tier1_done, tier2_needed, tier2_done,
    error, created_at, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item        Item
		status      string
		tier1       int
		tier2Need   int
		tier2Done   int
		errText     sql.NullString
		createdAt   sql.NullString
		startedAt   sql.NullString
		completedAt sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.MediaID,
		&status,
		&item.Priority,
		&tier1,
		&tier2Need,
		&tier2Done,
		&errText,
		&createdAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	item.Status = Status(status)
	item.Tier1Done = tier1 != 0
	item.Tier2Needed = tier2Need != 0
	item.Tier2Done = tier2Done != 0
	item.Error = errText.String
	item.CreatedAt = parseTimeString(createdAt)
	item.StartedAt = parseTimeString(startedAt)
	item.CompletedAt = parseTimeString(completedAt)
	return &item, nil
}

// Enqueue inserts one pending row per media id. Ids already present in the
// queue are left untouched. It returns how many rows were inserted.
func (s *Store) Enqueue(ctx context.Context, mediaIDs []int64, priority int) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	if len(mediaIDs) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO ai_tag_queue (media_id, status, priority, created_at)
            VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := nowString()
		for _, id := range mediaIDs {
			res, err := stmt.ExecContext(ctx, id, StatusPending, priority, now)
			if err != nil {
				return fmt.Errorf("enqueue media %d: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return inserted, nil
}

// NextPending returns the highest-priority pending item, oldest first among
// equal priorities. It returns nil when nothing is pending.
func (s *Store) NextPending(ctx context.Context) (*Item, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM ai_tag_queue
        WHERE status = ?
        ORDER BY priority DESC, id ASC
        LIMIT 1`, StatusPending)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return item, nil
}

// GetByID fetches a queue item by its row id. It returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	return s.getOne(ctx, "id", id)
}

// GetByMediaID fetches the queue item for a media id. It returns nil when absent.
func (s *Store) GetByMediaID(ctx context.Context, mediaID int64) (*Item, error) {
	return s.getOne(ctx, "media_id", mediaID)
}

func (s *Store) getOne(ctx context.Context, column string, value int64) (*Item, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM ai_tag_queue WHERE `+column+` = ?`, value)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item by %s: %w", column, err)
	}
	return item, nil
}

// List returns queue items filtered by status (all when none given), in
// processing order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	query := `SELECT ` + itemColumns + ` FROM ai_tag_queue`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY priority DESC, id ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkProcessing moves a pending item to processing and stamps started_at.
func (s *Store) MarkProcessing(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusPending,
		`UPDATE ai_tag_queue SET status = ?, started_at = ?, completed_at = NULL, error = NULL
        WHERE id = ? AND status = ?`,
		StatusProcessing, nowString(), id, StatusPending)
}

// MarkTier1Done records Tier 1 completion and whether Tier 2 still has to run.
func (s *Store) MarkTier1Done(ctx context.Context, id int64, tier2Needed bool) error {
	return s.transition(ctx, id, StatusProcessing,
		`UPDATE ai_tag_queue SET tier1_done = 1, tier2_needed = ? WHERE id = ? AND status = ?`,
		boolToInt(tier2Needed), id, StatusProcessing)
}

// MarkTier2Done records Tier 2 completion.
func (s *Store) MarkTier2Done(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusProcessing,
		`UPDATE ai_tag_queue SET tier2_done = 1 WHERE id = ? AND status = ?`,
		id, StatusProcessing)
}

// MarkCompleted moves a processing item to completed.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StatusProcessing,
		`UPDATE ai_tag_queue SET status = ?, completed_at = ?, error = NULL WHERE id = ? AND status = ?`,
		StatusCompleted, nowString(), id, StatusProcessing)
}

// MarkFailed moves a processing item to failed with the captured message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	return s.transition(ctx, id, StatusProcessing,
		`UPDATE ai_tag_queue SET status = ?, error = ?, completed_at = ? WHERE id = ? AND status = ?`,
		StatusFailed, message, nowString(), id, StatusProcessing)
}

func (s *Store) transition(ctx context.Context, id int64, from Status, query string, args ...any) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item %d not %s: %w", id, from, ErrStatusConflict)
	}
	return nil
}

// CompleteWithResult upserts the analysis result and marks the item
// completed in a single transaction.
func (s *Store) CompleteWithResult(ctx context.Context, id int64, result Result) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertResult(ctx, tx, result); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE ai_tag_queue SET status = ?, completed_at = ?, error = NULL WHERE id = ? AND status = ?`,
			StatusCompleted, nowString(), id, StatusProcessing)
		if err != nil {
			return fmt.Errorf("complete queue item %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("queue item %d not %s: %w", id, StatusProcessing, ErrStatusConflict)
		}
		return nil
	})
}

// RetryFailed resets failed items to pending, clearing error text, progress
// flags and timestamps.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE ai_tag_queue
        SET status = ?, error = NULL, started_at = NULL, completed_at = NULL,
            tier1_done = 0, tier2_needed = 0, tier2_done = 0
        WHERE status = ?`, StatusPending, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("retry failed: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns items left in processing by an interrupted
// run to pending. Progress flags are cleared because the pipeline restarts
// from frame sampling. It is an operator action; nothing calls it on startup.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE ai_tag_queue
        SET status = ?, started_at = NULL, tier1_done = 0, tier2_needed = 0, tier2_done = 0
        WHERE status = ?`, StatusPending, StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed deletes failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM ai_tag_queue WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes queue rows for the given media ids regardless of status.
func (s *Store) Remove(ctx context.Context, mediaIDs []int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	if len(mediaIDs) == 0 {
		return 0, nil
	}
	args := make([]any, len(mediaIDs))
	for i, id := range mediaIDs {
		args[i] = id
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM ai_tag_queue WHERE media_id IN (`+makePlaceholders(len(mediaIDs))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("remove queue items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns row counts per status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if s == nil || s.db == nil {
		return stats, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(*) FROM ai_tag_queue GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan queue stats: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

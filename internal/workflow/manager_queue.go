package workflow

import (
	"context"
	"fmt"

	"autotag/internal/logging"
	"autotag/internal/queue"
)

// QueueUntagged enqueues every media item with no tag links.
func (m *Manager) QueueUntagged(ctx context.Context, priority int) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	ids, err := m.lib.UntaggedMediaIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list untagged media: %w", err)
	}
	return m.enqueue(ctx, "untagged", ids, priority)
}

// QueueSpecific enqueues the given media ids. Ids unknown to the library
// are ignored.
func (m *Manager) QueueSpecific(ctx context.Context, mediaIDs []int64, priority int) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	if len(mediaIDs) == 0 {
		return 0, nil
	}
	ids, err := m.lib.ExistingMediaIDs(ctx, mediaIDs)
	if err != nil {
		return 0, fmt.Errorf("check media ids: %w", err)
	}
	if skipped := len(uniqueIDs(mediaIDs)) - len(ids); skipped > 0 {
		m.logger.Info("unknown media ids ignored", logging.Int("skipped", skipped))
	}
	return m.enqueue(ctx, "specific", ids, priority)
}

// QueueAll enqueues every media item in the library.
func (m *Manager) QueueAll(ctx context.Context, priority int) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	ids, err := m.lib.AllMediaIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list media: %w", err)
	}
	return m.enqueue(ctx, "all", ids, priority)
}

// RetryFailed moves failed items back to pending.
func (m *Manager) RetryFailed(ctx context.Context) (int64, error) {
	if m.store == nil {
		return 0, queue.ErrNotInitialized
	}
	n, err := m.store.RetryFailed(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("failed items requeued", logging.Int64("count", n))
		m.notify()
	}
	return n, nil
}

// ClearFailed deletes failed items.
func (m *Manager) ClearFailed(ctx context.Context) (int64, error) {
	if m.store == nil {
		return 0, queue.ErrNotInitialized
	}
	n, err := m.store.ClearFailed(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("failed items cleared", logging.Int64("count", n))
	}
	return n, nil
}

// ResetStuck returns processing items to pending. It refuses while the
// worker is running because the current item is also in processing.
func (m *Manager) ResetStuck(ctx context.Context) (int64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	if m.IsRunning() {
		return 0, ErrAlreadyRunning
	}
	n, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("stuck items reset", logging.Int64("count", n))
		m.notify()
	}
	return n, nil
}

// Dequeue removes queue rows for the given media ids regardless of status.
func (m *Manager) Dequeue(ctx context.Context, mediaIDs []int64) (int64, error) {
	if m.store == nil {
		return 0, queue.ErrNotInitialized
	}
	return m.store.Remove(ctx, mediaIDs)
}

func (m *Manager) enqueue(ctx context.Context, scope string, ids []int64, priority int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	added, err := m.store.Enqueue(ctx, ids, priority)
	if err != nil {
		return 0, err
	}
	m.logger.Info("media enqueued",
		logging.String(logging.FieldEventType, "queue_enqueue"),
		logging.String("scope", scope),
		logging.Int("requested", len(ids)),
		logging.Int("added", added),
		logging.Int("priority", priority),
	)
	if added > 0 {
		m.notify()
	}
	return added, nil
}

func (m *Manager) ready() error {
	if m == nil || m.store == nil || m.lib == nil {
		return queue.ErrNotInitialized
	}
	return nil
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

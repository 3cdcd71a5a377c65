package workflow

import (
	"context"

	"autotag/internal/logging"
	"autotag/internal/metrics"
	"autotag/internal/queue"
	"autotag/internal/stage"
)

// StatusSummary is a snapshot of the worker and the queue.
type StatusSummary struct {
	Running        bool           `json:"running"`
	Paused         bool           `json:"paused"`
	CurrentMediaID int64          `json:"currentMediaId,omitempty"`
	LastError      string         `json:"lastError,omitempty"`
	LastItem       *queue.Item    `json:"lastItem,omitempty"`
	Queue          queue.Stats    `json:"queue"`
	StageHealth    []stage.Health `json:"stageHealth"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Paused: m.paused}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		copy := *m.lastItem
		summary.LastItem = &copy
	}
	if m.current != nil {
		summary.CurrentMediaID = m.current.MediaID
	}
	set := m.stages
	m.mu.RUnlock()

	if m.store != nil {
		stats, err := m.store.Stats(ctx)
		if err != nil {
			m.logger.Warn("failed to read queue stats", logging.Error(err))
		} else {
			summary.Queue = stats
			metrics.SetQueueDepth(stats)
		}
	}
	summary.StageHealth = stage.Collect(ctx, checkers(set)...)
	return summary
}

// Health returns the readiness of every configured stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	m.mu.RLock()
	set := m.stages
	m.mu.RUnlock()
	return stage.Collect(ctx, checkers(set)...)
}

func checkers(set StageSet) []stage.Checker {
	var out []stage.Checker
	for _, candidate := range []any{set.Sampler, set.Tier1, set.Tier2, set.Tier3} {
		if c, ok := candidate.(stage.Checker); ok && c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		copy := *item
		m.lastItem = &copy
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}

func (m *Manager) setCurrent(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		copy := *item
		m.current = &copy
	} else {
		m.current = nil
	}
	m.mu.Unlock()
}

package workflow

import (
	"context"
	"errors"
	"time"

	"autotag/internal/logging"
	"autotag/internal/metrics"
	"autotag/internal/queue"
	"autotag/internal/services"
)

// ErrAlreadyRunning is returned by Start when the worker is active.
var ErrAlreadyRunning = errors.New("workflow already running")

// Start launches the worker. Items run with ctx; Stop only prevents the next
// item from starting. concurrency is accepted for forward compatibility but
// items are always processed one at a time.
func (m *Manager) Start(ctx context.Context, concurrency int) error {
	if m.store == nil {
		return queue.ErrNotInitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}
	if m.stages.Sampler == nil || m.stages.Tier3 == nil {
		return services.Wrap(services.ErrConfiguration, "workflow", "start", "frame sampler and resolver are required", nil)
	}
	if m.stages.Tier1 == nil || !m.stages.Tier1.Available() {
		return services.Wrap(services.ErrUnavailable, "workflow", "start", "tier 1 inference is not available; check model files and the onnxruntime library", nil)
	}
	if concurrency > 1 {
		m.logger.Info("concurrency requested; items are processed one at a time",
			logging.Int("requested", concurrency))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.stopping = cancel
	m.running = true
	m.paused = false
	m.done = make(chan struct{})
	metrics.SetWorkerState(true, false)

	go m.run(ctx, loopCtx, m.done)
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Bool("tier2_enabled", m.tier2Enabled()),
	)
	return nil
}

// Pause stops the worker from starting new items. The current item finishes.
func (m *Manager) Pause() {
	m.mu.Lock()
	changed := m.running && !m.paused
	if changed {
		m.paused = true
	}
	running, paused := m.running, m.paused
	m.mu.Unlock()
	if changed {
		metrics.SetWorkerState(running, paused)
		m.logger.Info("workflow paused", logging.String(logging.FieldEventType, "workflow_pause"))
	}
}

// Resume lets a paused worker pick up items again.
func (m *Manager) Resume() {
	m.mu.Lock()
	changed := m.running && m.paused
	if changed {
		m.paused = false
	}
	running, paused := m.running, m.paused
	m.mu.Unlock()
	if changed {
		metrics.SetWorkerState(running, paused)
		m.logger.Info("workflow resumed", logging.String(logging.FieldEventType, "workflow_resume"))
		m.notify()
	}
}

// Stop asks the worker to exit after the current item. Use Wait to block
// until it has.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.stopping
	m.stopping = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the worker has exited. It returns immediately when the
// worker was never started.
func (m *Manager) Wait() {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// IsRunning reports whether the worker is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// IsPaused reports whether the worker is paused.
func (m *Manager) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

func (m *Manager) run(itemCtx, loopCtx context.Context, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.paused = false
		m.stopping = nil
		m.mu.Unlock()
		metrics.SetWorkerState(false, false)
		m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
		close(done)
	}()

	for {
		if loopCtx.Err() != nil {
			return
		}
		if m.IsPaused() {
			m.idle(loopCtx, m.pollInterval)
			continue
		}

		item, err := m.store.NextPending(itemCtx)
		if err != nil {
			if itemCtx.Err() != nil {
				return
			}
			m.handleNextItemError(err)
			m.idle(loopCtx, m.retryInterval)
			continue
		}
		if item == nil {
			m.idle(loopCtx, m.pollInterval)
			continue
		}

		claimErr := m.processItem(itemCtx, item)
		if itemCtx.Err() != nil {
			return
		}
		if claimErr != nil {
			m.idle(loopCtx, m.retryInterval)
		}
	}
}

func (m *Manager) handleNextItemError(err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "failed to fetch next queue item", "queue_fetch_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
}

// idle waits for the interval, a wake signal or shutdown.
func (m *Manager) idle(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-timer.C:
	}
}

func (m *Manager) tier2Enabled() bool {
	return m.stages.Tier2 != nil && m.stages.Tier2.Enabled()
}

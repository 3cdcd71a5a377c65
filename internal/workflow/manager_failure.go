package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"autotag/internal/logging"
	"autotag/internal/metrics"
	"autotag/internal/queue"
	"autotag/internal/services"
)

func (m *Manager) handleItemFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		// Left as processing so a restart shows it; only an explicit retry
		// requeues it.
		logger.Info("item interrupted by shutdown; left in processing",
			logging.String(logging.FieldEventType, "item_interrupted"))
		m.setLastError(err)
		return
	}

	stage := "workflow"
	var se *stageError
	if errors.As(err, &se) {
		stage = se.stage
	}
	message := failureMessage(stage, err)
	details := services.Details(err)

	logging.ErrorWithContext(logger, "item failed", "item_failure",
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String("error_message", message),
		logging.Error(err),
	)

	metrics.ItemsProcessed.WithLabelValues(string(queue.StatusFailed)).Inc()
	m.setLastError(err)
	if perr := m.store.MarkFailed(ctx, item.ID, message); perr != nil {
		logging.ErrorWithContext(logger, "failed to persist item failure", "queue_persist_failed",
			logging.Error(perr),
			logging.String(logging.FieldErrorHint, "item stays in processing; retry it manually"),
		)
	} else {
		item.Status = queue.StatusFailed
		item.Error = message
	}
	m.setLastItem(item)
}

// failureMessage is the text persisted on the queue row.
func failureMessage(stage string, err error) string {
	var se *stageError
	inner := err
	if errors.As(err, &se) {
		inner = se.err
	}
	message := strings.TrimSpace(services.Details(inner).Message)
	if message == "" {
		message = "failed without error detail"
	}
	return stage + ": " + message
}

package workflow

import (
	"context"

	"autotag/internal/queue"
	"autotag/internal/services"
)

func withItemContext(ctx context.Context, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithItemID(ctx, item.ID)
		ctx = services.WithMediaID(ctx, item.MediaID)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

package repositories

import (
	"context"
	"time"

	"github.com/upb/llm-router/models"
)

// DispatchEventRepository handles dispatch audit data operations
type DispatchEventRepository interface {
	// Insert inserts a new dispatch event
	Insert(ctx context.Context, event *models.DispatchEvent) error

	// ListByDispatch retrieves the events of one dispatch in the order they happened
	ListByDispatch(ctx context.Context, dispatchID string) ([]*models.DispatchEvent, error)

	// ListRecent retrieves the most recent events, newest first
	ListRecent(ctx context.Context, limit int) ([]*models.DispatchEvent, error)

	// DeleteOlderThan removes events created before cutoff and returns the count
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

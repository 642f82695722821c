package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

const selectDispatchEvents = `
		SELECT id, dispatch_id, kind, model, from_model, COALESCE(message, ''), attempt, created_at
		FROM dispatch_events
	`

// DispatchEventRepository implements the repositories.DispatchEventRepository interface
type DispatchEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDispatchEventRepository creates a new dispatch event repository
func NewDispatchEventRepository(db *DB, logger *zap.Logger) repositories.DispatchEventRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new dispatch event
func (r *DispatchEventRepository) Insert(ctx context.Context, event *models.DispatchEvent) error {
	query := `
		INSERT INTO dispatch_events (
			id, dispatch_id, kind, model, from_model, message, attempt, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.DispatchID,
		event.Kind,
		event.Model,
		event.FromModel,
		event.Message,
		event.Attempt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch event: %w", err)
	}

	r.logger.Debug("dispatch event inserted",
		zap.String("id", event.ID.String()),
		zap.String("dispatch_id", event.DispatchID),
		zap.String("kind", string(event.Kind)))
	return nil
}

// ListByDispatch retrieves the events of one dispatch in the order they happened
func (r *DispatchEventRepository) ListByDispatch(ctx context.Context, dispatchID string) ([]*models.DispatchEvent, error) {
	query := selectDispatchEvents + `
		WHERE dispatch_id = $1
		ORDER BY attempt ASC, created_at ASC
	`

	return r.queryEvents(ctx, query, dispatchID)
}

// ListRecent retrieves the most recent events, newest first
func (r *DispatchEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.DispatchEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := selectDispatchEvents + `
		ORDER BY created_at DESC
		LIMIT $1
	`

	return r.queryEvents(ctx, query, limit)
}

// DeleteOlderThan removes events created before cutoff to keep the table size manageable
func (r *DispatchEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM dispatch_events
		WHERE created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old dispatch events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// queryEvents is a helper method to query multiple dispatch events
func (r *DispatchEventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*models.DispatchEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch events: %w", err)
	}
	defer rows.Close()

	var events []*models.DispatchEvent
	for rows.Next() {
		event := &models.DispatchEvent{}
		err := rows.Scan(
			&event.ID,
			&event.DispatchID,
			&event.Kind,
			&event.Model,
			&event.FromModel,
			&event.Message,
			&event.Attempt,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispatch event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispatch event rows: %w", err)
	}

	return events, nil
}

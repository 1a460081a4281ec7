// internal/repository/postgres/processed_event_repo.go
package postgres

import (
	"context"
	"errors"
	"time"

	"billing-service/internal/domain/webhook"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProcessedEventRepository struct {
	db *pgxpool.Pool
}

func NewProcessedEventRepository(db *pgxpool.Pool) *ProcessedEventRepository {
	return &ProcessedEventRepository{db: db}
}

// Claim inserts a processing row for the event, or takes over one whose
// claim outlived the lease. Both happen in a single statement.
func (r *ProcessedEventRepository) Claim(ctx context.Context, eventID, eventType string, now time.Time, lease time.Duration) (webhook.ClaimResult, error) {
	query := `
		INSERT INTO processed_webhook_events (event_id, event_type, outcome, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO UPDATE
			SET processed_at = EXCLUDED.processed_at
			WHERE processed_webhook_events.outcome = $3
			  AND processed_webhook_events.processed_at < $5
	`

	tag, err := r.db.Exec(ctx, query, eventID, eventType, string(webhook.OutcomeProcessing), now, now.Add(-lease))
	if err != nil {
		return "", mapError("claim processed event", err)
	}
	if tag.RowsAffected() == 1 {
		return webhook.ClaimAcquired, nil
	}

	var outcome string
	err = r.db.QueryRow(ctx, `SELECT outcome FROM processed_webhook_events WHERE event_id = $1`, eventID).Scan(&outcome)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Released between the two statements; the next delivery will claim it
		return webhook.ClaimInProgress, nil
	case err != nil:
		return "", mapError("read processed event", err)
	case outcome == string(webhook.OutcomeProcessing):
		return webhook.ClaimInProgress, nil
	default:
		return webhook.ClaimCompleted, nil
	}
}

// Record stores the final outcome over the claim. A final outcome already on
// the row is kept.
func (r *ProcessedEventRepository) Record(ctx context.Context, e *webhook.ProcessedEvent) error {
	query := `
		INSERT INTO processed_webhook_events (event_id, event_type, outcome, error, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE
			SET outcome = EXCLUDED.outcome,
			    error = EXCLUDED.error,
			    processed_at = EXCLUDED.processed_at
			WHERE processed_webhook_events.outcome = $6
	`

	_, err := r.db.Exec(ctx, query,
		e.EventID, e.EventType, string(e.Outcome), e.Error, e.ProcessedAt,
		string(webhook.OutcomeProcessing))
	if err != nil {
		return mapError("record processed event", err)
	}
	return nil
}

// Release deletes an unfinished claim so a redelivery can process the event.
func (r *ProcessedEventRepository) Release(ctx context.Context, eventID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM processed_webhook_events WHERE event_id = $1 AND outcome = $2`,
		eventID, string(webhook.OutcomeProcessing))
	if err != nil {
		return mapError("release processed event", err)
	}
	return nil
}

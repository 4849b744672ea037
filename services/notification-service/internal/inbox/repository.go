// Package inbox records consumed event ids so redelivered Kafka messages are handled once.
package inbox

import (
	"context"
	"fmt"

	"github.com/salonpanel/salonpanel/libs/db"
)

type Repository struct {
	q db.Querier
}

// NewRepository accepts the pool or a transaction.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Record claims eventID and reports whether this call was the first to do so.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	const claim = `INSERT INTO inbox_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`
	tag, err := r.q.Exec(ctx, claim, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Forget releases the claim on eventID; the next redelivery is then handled again.
func (r *Repository) Forget(ctx context.Context, eventID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

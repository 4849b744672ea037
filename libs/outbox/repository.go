package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonpanel/salonpanel/libs/db"
	otelx "github.com/salonpanel/salonpanel/libs/otel"
	"github.com/salonpanel/salonpanel/libs/runtime"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stores evt together with the caller's request id and trace context. q is
// normally the transaction that carries the state change the event describes.
func (r *Repository) Insert(ctx context.Context, q db.Querier, evt Event) error {
	tc := otelx.CaptureTraceContext(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO outbox_events
			(business_id, aggregate_type, aggregate_id, event_type, payload, request_id, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.BusinessID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload,
		runtime.RequestIDFromContext(ctx), tc.Parent, tc.State)
	return err
}

// FetchUnpublished locks up to limit pending rows, oldest first. Rows locked by another
// publisher instance are skipped.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id::text, business_id, aggregate_type, aggregate_id, event_type, payload,
		       request_id, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rcd Record
		err := row.Scan(&rcd.ID, &rcd.EventID, &rcd.BusinessID, &rcd.AggregateType, &rcd.AggregateID,
			&rcd.EventType, &rcd.Payload, &rcd.RequestID, &rcd.Trace.Parent, &rcd.Trace.State, &rcd.CreatedAt)
		return rcd, err
	})
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// Prune deletes rows published before cutoff and returns how many went.
func (r *Repository) Prune(ctx context.Context, q db.Querier, cutoff time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM outbox_events
		WHERE published_at IS NOT NULL AND published_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonpanel/salonpanel/libs/db"
	"github.com/salonpanel/salonpanel/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Publisher relays outbox rows to Kafka and prunes rows that were published long ago.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
	retention time.Duration
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention is how long published rows are kept. Zero means one week.
	Retention time.Duration
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		retention: cfg.Retention,
	}
}

// Run relays unpublished events until ctx is cancelled. Without brokers it returns
// immediately and events accumulate in the table.
func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	poll := time.NewTicker(p.pollEvery)
	defer poll.Stop()
	prune := time.NewTicker(time.Hour)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			n, err := p.publishBatch(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox events published", "count", n)
			}
		case <-prune.C:
			n, err := p.repo.Prune(ctx, p.pool, time.Now().Add(-p.retention))
			if err != nil {
				p.logger.Error("outbox prune failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Info("outbox pruned", "deleted", n)
			}
		}
	}
}

// publishBatch sends one batch and marks it published in the same transaction that
// locked it. A failed write leaves the rows pending for the next poll.
func (p *Publisher) publishBatch(ctx context.Context, writer *kafka.Writer) (int, error) {
	var sent int
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, toMessage(ctx, r))
			ids = append(ids, r.ID)
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		sent = len(records)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	return sent, err
}

func toMessage(ctx context.Context, r Record) kafka.Message {
	meta := kafkax.EventMeta{
		EventID:    r.EventID,
		EventType:  r.EventType,
		BusinessID: r.BusinessID,
		RequestID:  r.RequestID,
	}
	return kafka.Message{
		Topic:   r.EventType,
		Key:     r.PartitionKey(),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(r.Trace.Attach(ctx), meta.Headers()),
	}
}

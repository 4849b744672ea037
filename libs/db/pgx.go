package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/salonpanel/salonpanel/libs/runtime"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository methods can run
// inside or outside a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Pool struct {
	*pgxpool.Pool
}

type Options struct {
	MaxConns int32
	MinConns int32
	// Logger receives pgx errors. With LogQueries every statement is logged at debug.
	Logger     *slog.Logger
	LogQueries bool
	// ConnectAttempts bounds the pings made while the database is still starting.
	ConnectAttempts int
}

func (o Options) apply(cfg *pgxpool.Config) {
	cfg.MaxConns = 10
	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	cfg.MinConns = 1
	if o.MinConns > 0 {
		cfg.MinConns = min(o.MinConns, cfg.MaxConns)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	if o.Logger != nil {
		level := tracelog.LogLevelWarn
		if o.LogQueries {
			level = tracelog.LogLevelDebug
		}
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{Logger: slogTracer(o.Logger), LogLevel: level}
	}
}

func slogTracer(logger *slog.Logger) tracelog.Logger {
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]any, 0, 2*len(data))
		for k, v := range data {
			attrs = append(attrs, k, v)
		}
		l := runtime.Logger(ctx, logger)
		switch {
		case level <= tracelog.LogLevelError:
			l.Error("pgx: "+msg, attrs...)
		case level == tracelog.LogLevelWarn:
			l.Warn("pgx: "+msg, attrs...)
		default:
			l.Debug("pgx: "+msg, attrs...)
		}
	})
}

// Open connects and pings, retrying with a doubling delay until ConnectAttempts run out
// or ctx ends.
func Open(ctx context.Context, databaseURL string, opts ...Options) (*Pool, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	o.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	attempts := max(o.ConnectAttempts, 1)
	delay := 500 * time.Millisecond
	for i := 1; ; i++ {
		err = pool.Ping(ctx)
		if err == nil {
			return &Pool{Pool: pool}, nil
		}
		if i == attempts {
			break
		}
		if o.Logger != nil {
			o.Logger.Warn("database not reachable yet", "attempt", i, "err", err)
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	pool.Close()
	return nil, fmt.Errorf("ping database after %d attempts: %w", attempts, err)
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

func ReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("db not configured")
		}
		return pool.Ping(ctx)
	}
}

// InTx runs fn in a transaction, committing when fn returns nil and rolling back otherwise.
func (p *Pool) InTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, p.Pool, fn)
}

// IsForeignKeyViolation reports a reference to a row that does not exist.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

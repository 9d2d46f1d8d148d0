// Package ledger stores settlement events in PostgreSQL.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/settlement"
)

// Ledger records each settlement event at most once per key and status
type Ledger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Connect opens a pool and checks the connection
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Record inserts event and reports whether it was new
func (l *Ledger) Record(ctx context.Context, event settlement.Event) (bool, error) {
	query := `
		INSERT INTO settlements (
			idempotency_key, status, scheme, network, resource, pay_to, asset,
			amount, payer, transaction, error_reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12)
		ON CONFLICT (idempotency_key, status) DO NOTHING`

	tag, err := l.pool.Exec(ctx, query,
		event.IdempotencyKey,
		string(event.Status),
		string(event.Scheme),
		string(event.Network),
		event.Resource,
		event.PayTo,
		event.Asset,
		event.Amount,
		event.Payer,
		event.Transaction,
		event.ErrorReason,
		event.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert settlement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Find returns every event recorded for key, oldest first
func (l *Ledger) Find(ctx context.Context, key string) ([]settlement.Event, error) {
	query := `
		SELECT idempotency_key, status, scheme, network, resource, pay_to, asset,
			amount::text, COALESCE(payer, ''), COALESCE(transaction, ''), COALESCE(error_reason, ''), created_at
		FROM settlements
		WHERE idempotency_key = $1
		ORDER BY created_at, id`

	rows, err := l.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (settlement.Event, error) {
		var (
			e       settlement.Event
			status  string
			scheme  string
			network string
		)
		err := row.Scan(&e.IdempotencyKey, &status, &scheme, &network, &e.Resource, &e.PayTo, &e.Asset,
			&e.Amount, &e.Payer, &e.Transaction, &e.ErrorReason, &e.CreatedAt)
		e.Status = settlement.Status(status)
		e.Scheme = x402.Scheme(scheme)
		e.Network = x402.Network(network)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan settlements: %w", err)
	}
	return events, nil
}

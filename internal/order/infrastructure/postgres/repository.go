package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/order-admission/internal/order/application"
	"github.com/dmehra2102/order-admission/internal/order/domain"
)

const (
	uniqueViolation      = "23505"
	ordersPkey           = "orders_pkey"
	ordersIdempotencyKey = "orders_idempotency_key_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	idempotency_key TEXT UNIQUE,
	total           NUMERIC(20,4) NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS order_line_items (
	order_id   TEXT NOT NULL REFERENCES orders(id),
	position   INT NOT NULL,
	sku        TEXT NOT NULL,
	quantity   INT NOT NULL CHECK (quantity > 0),
	unit_price NUMERIC(20,4) NOT NULL,
	PRIMARY KEY (order_id, position)
);
CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        JSONB NOT NULL,
	headers        JSONB NOT NULL DEFAULT '{}',
	traceparent    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS outbox_status_idx ON outbox (status, id);
`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate order ledger: %w", err)
	}
	return nil
}

// Append writes the order, its line items and the outbox event in a single
// transaction. The commit is the only point at which the order becomes
// visible.
func (r *Repository) Append(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}
	_, err = tx.Exec(ctx, `INSERT INTO orders (id, idempotency_key, total, created_at) VALUES ($1,$2,$3,$4)`,
		o.ID, key, o.Total, o.CreatedAt)
	if err != nil {
		return classify(err)
	}

	if headers == nil {
		headers = map[string]string{}
	}
	batch := &pgx.Batch{}
	for i, item := range o.LineItems {
		batch.Queue(`INSERT INTO order_line_items (order_id, position, sku, quantity, unit_price) VALUES ($1,$2,$3,$4,$5)`,
			o.ID, i, item.SKU, item.Quantity, item.UnitPrice)
	}
	batch.Queue(`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", o.ID, eventType, payload, headers, traceparent)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM orders WHERE idempotency_key=$1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return r.Get(ctx, id)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		o     domain.Order
		key   *string
		total string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, idempotency_key, total::text, created_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &key, &total, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if key != nil {
		o.IdempotencyKey = *key
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT sku, quantity, unit_price::text FROM order_line_items WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item  domain.LineItem
			price string
		)
		if err := rows.Scan(&item.SKU, &item.Quantity, &price); err != nil {
			return domain.Order{}, err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, err
		}
		o.LineItems = append(o.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

// classify maps a write error onto the ledger's error contract.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case ordersIdempotencyKey:
			return fmt.Errorf("%w: %s", application.ErrIdempotencyConflict, pgErr.Detail)
		case ordersPkey:
			return fmt.Errorf("%w: %s", application.ErrDuplicateKey, pgErr.Detail)
		}
	}
	return fmt.Errorf("%w: %w", application.ErrStorageFault, err)
}

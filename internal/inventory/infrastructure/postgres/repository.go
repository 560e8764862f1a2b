package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/order-admission/internal/inventory/domain"
)

// numericOutOfRange is the SQLSTATE raised when quantity + delta leaves BIGINT.
const numericOutOfRange = "22003"

const schema = `
CREATE TABLE IF NOT EXISTS stock_entries (
	sku        TEXT PRIMARY KEY,
	quantity   BIGINT NOT NULL CHECK (quantity >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate stock_entries: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, sku string) (domain.StockEntry, error) {
	var e domain.StockEntry
	err := r.pool.QueryRow(ctx, `SELECT sku, quantity, updated_at FROM stock_entries WHERE sku=$1`, sku).
		Scan(&e.SKU, &e.Quantity, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockEntry{}, domain.ErrUnknownSKU
	}
	if err != nil {
		return domain.StockEntry{}, err
	}
	return e, nil
}

// GetMany reads every requested SKU in one round trip. SKUs without an entry
// are absent from the result.
func (r *Repository) GetMany(ctx context.Context, skus []string) (map[string]domain.StockEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku, quantity, updated_at FROM stock_entries WHERE sku = ANY($1)`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.StockEntry, len(skus))
	for rows.Next() {
		var e domain.StockEntry
		if err := rows.Scan(&e.SKU, &e.Quantity, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out[e.SKU] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Adjust applies delta as a single conditional update so concurrent
// adjustments can never drive the quantity negative.
func (r *Repository) Adjust(ctx context.Context, sku string, delta int64) (domain.StockEntry, error) {
	var e domain.StockEntry
	err := r.pool.QueryRow(ctx, `
		UPDATE stock_entries
		SET quantity = quantity + $2, updated_at = now()
		WHERE sku = $1 AND quantity + $2 >= 0
		RETURNING sku, quantity, updated_at`, sku, delta).
		Scan(&e.SKU, &e.Quantity, &e.UpdatedAt)
	if err == nil {
		return e, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == numericOutOfRange {
		return domain.StockEntry{}, fmt.Errorf("%w: sku %s change %d out of range", domain.ErrInvalidAdjustment, sku, delta)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.StockEntry{}, err
	}

	current, err := r.Get(ctx, sku)
	if err != nil {
		return domain.StockEntry{}, err
	}
	return domain.StockEntry{}, fmt.Errorf("%w: sku %s has %d, change %d", domain.ErrInsufficientStock, sku, current.Quantity, delta)
}

// Upsert sets absolute quantities. Only the stock seeding tool calls it.
func (r *Repository) Upsert(ctx context.Context, entries []domain.StockEntry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO stock_entries (sku, quantity, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (sku) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
			e.SKU, e.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.log.Info("stock entries upserted", "count", len(entries))
	return nil
}

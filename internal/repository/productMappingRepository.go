package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductMappingRepo interface {
	RemoteID(ctx context.Context, productID, parentProductID int64) (int64, bool, error)
}

// ProductMappingRepository correlates local product IDs with the proxy
// backend's catalog. A variation without its own mapping falls back to its
// parent product's mapping.
type ProductMappingRepository struct {
	pool *pgxpool.Pool
}

func NewProductMappingRepository(p *pgxpool.Pool) *ProductMappingRepository {
	return &ProductMappingRepository{pool: p}
}

func (p *ProductMappingRepository) RemoteID(ctx context.Context, productID, parentProductID int64) (int64, bool, error) {
	var remote int64
	err := p.pool.QueryRow(ctx, `
		SELECT server_product_id FROM bridge.product_mappings
		WHERE product_id = $1 OR ($2 <> 0 AND product_id = $2)
		ORDER BY (product_id = $1) DESC
		LIMIT 1
	`, productID, parentProductID).Scan(&remote)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remote, true, nil
}

func (p *ProductMappingRepository) Upsert(ctx context.Context, productID, serverProductID int64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO bridge.product_mappings (product_id, server_product_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET server_product_id = EXCLUDED.server_product_id
	`, productID, serverProductID)
	return err
}

package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storebridge/paypal-bridge/internal/domain"
	"github.com/storebridge/paypal-bridge/internal/logger"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrAlreadyPaid   = errors.New("order already paid")
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *domain.Order, note string) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateShipping(ctx context.Context, o *domain.Order) error
	MarkPaid(ctx context.Context, id uuid.UUID, paypalOrderID, transactionID, note string) error
	AppendNote(ctx context.Context, id uuid.UUID, note string) error
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

// CreateOrder persists the whole order in one transaction: either every
// item, shipping line and snapshot becomes visible, or nothing does.
func (p *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order, note string) error {
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return err
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return err
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO bridge.orders
			(id, order_key, status, currency, billing, shipping,
			 items_total_cents, shipping_total_cents, shipping_tax_cents,
			 cart_tax_cents, total_cents, test_data, date_created)
		 VALUES
			($1, $2, $3, $4, $5, $6,
			 $7, $8, $9,
			 $10, $11, $12, $13)
		`,
		o.ID,
		o.OrderKey,
		o.Status,
		o.Currency,
		billing,
		shipping,
		o.ItemsTotal,
		o.ShippingTotal,
		o.ShippingTax,
		o.CartTax,
		o.Total,
		o.TestData,
		o.DateCreated,
	)
	if err != nil {
		logger.Warn("insert order failed", "err", err)
		return err
	}

	if len(o.Items) > 0 {
		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(`
				INSERT INTO bridge.order_items
					(order_id, name, sku, description, quantity, unit_price_cents,
					 subtotal_cents, total_cents, subtotal_tax_cents, tax_cents,
					 product_id, mapped_product_id)
				VALUES
					($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			`,
				o.ID, it.Name, it.SKU, it.Description, it.Quantity, it.UnitPriceCents,
				it.SubtotalCents, it.TotalCents, it.SubtotalTax, it.TaxCents,
				it.ProductID, it.MappedProductID,
			)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return err
		}
	}

	if len(o.ShippingLines) > 0 {
		batch := &pgx.Batch{}
		for _, sl := range o.ShippingLines {
			batch.Queue(`
				INSERT INTO bridge.order_shipping_lines
					(order_id, method_id, method_title, total_cents, tax_cents)
				VALUES ($1, $2, $3, $4, $5)
			`, o.ID, sl.MethodID, sl.MethodTitle, sl.TotalCents, sl.TaxCents)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return err
		}
	}

	if len(o.Snapshots) > 0 {
		batch := &pgx.Batch{}
		for _, sn := range o.Snapshots {
			meta, merr := json.Marshal(sn.Meta)
			if merr != nil {
				return merr
			}
			batch.Queue(`
				INSERT INTO bridge.order_shipping_snapshots
					(order_id, package_id, method_id, label, cost_cents, tax_cents, meta)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, o.ID, sn.PackageID, sn.MethodID, sn.Label, sn.CostCents, sn.TaxCents, meta)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return err
		}
	}

	if note != "" {
		if _, err = tx.Exec(ctx,
			`INSERT INTO bridge.order_notes (order_id, note) VALUES ($1, $2)`,
			o.ID, note,
		); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}

func (p *OrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var (
		o        domain.Order
		billing  []byte
		shipping []byte
		ppID     *string
		txnID    *string
		testData *string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, order_key, status, currency, billing, shipping,
				items_total_cents, shipping_total_cents, shipping_tax_cents,
				cart_tax_cents, total_cents, paypal_order_id, transaction_id,
				test_data, date_created
		 FROM bridge.orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.OrderKey, &o.Status, &o.Currency, &billing, &shipping,
		&o.ItemsTotal, &o.ShippingTotal, &o.ShippingTax,
		&o.CartTax, &o.Total, &ppID, &txnID, &testData, &o.DateCreated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, err
	}
	if ppID != nil {
		o.PayPalOrderID = *ppID
	}
	if txnID != nil {
		o.TransactionID = *txnID
	}
	if testData != nil {
		o.TestData = *testData
	}

	rows, err := p.pool.Query(ctx,
		`SELECT name, sku, description, quantity, unit_price_cents,
				subtotal_cents, total_cents, subtotal_tax_cents, tax_cents,
				product_id, mapped_product_id
		 FROM bridge.order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.Name, &it.SKU, &it.Description, &it.Quantity,
			&it.UnitPriceCents, &it.SubtotalCents, &it.TotalCents,
			&it.SubtotalTax, &it.TaxCents, &it.ProductID, &it.MappedProductID); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slRows, err := p.pool.Query(ctx,
		`SELECT method_id, method_title, total_cents, tax_cents
		 FROM bridge.order_shipping_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer slRows.Close()
	for slRows.Next() {
		var sl domain.ShippingLine
		if err := slRows.Scan(&sl.MethodID, &sl.MethodTitle, &sl.TotalCents, &sl.TaxCents); err != nil {
			return nil, err
		}
		o.ShippingLines = append(o.ShippingLines, sl)
	}
	if err := slRows.Err(); err != nil {
		return nil, err
	}

	snRows, err := p.pool.Query(ctx,
		`SELECT package_id, method_id, label, cost_cents, tax_cents, meta
		 FROM bridge.order_shipping_snapshots WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer snRows.Close()
	for snRows.Next() {
		var sn domain.ShippingSnapshot
		var meta []byte
		if err := snRows.Scan(&sn.PackageID, &sn.MethodID, &sn.Label, &sn.CostCents, &sn.TaxCents, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &sn.Meta); err != nil {
				return nil, err
			}
		}
		o.Snapshots = append(o.Snapshots, sn)
	}
	if err := snRows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

// UpdateShipping replaces the order's shipping lines and rewrites the
// totals columns from the order value, transactionally.
func (p *OrderRepository) UpdateShipping(ctx context.Context, o *domain.Order) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx,
		`DELETE FROM bridge.order_shipping_lines WHERE order_id = $1`, o.ID); err != nil {
		return err
	}
	for _, sl := range o.ShippingLines {
		if _, err = tx.Exec(ctx, `
			INSERT INTO bridge.order_shipping_lines
				(order_id, method_id, method_title, total_cents, tax_cents)
			VALUES ($1, $2, $3, $4, $5)
		`, o.ID, sl.MethodID, sl.MethodTitle, sl.TotalCents, sl.TaxCents); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bridge.orders SET
			items_total_cents = $2, shipping_total_cents = $3,
			shipping_tax_cents = $4, cart_tax_cents = $5, total_cents = $6
		WHERE id = $1
	`, o.ID, o.ItemsTotal, o.ShippingTotal, o.ShippingTax, o.CartTax, o.Total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}

// MarkPaid performs the terminal transition exactly once. A per-order
// advisory lock plus a conditional UPDATE on status close the window where
// two concurrent completion callbacks could both observe "pending".
func (p *OrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, paypalOrderID, transactionID, note string) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, id); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bridge.orders
		SET status = 'processing', paypal_order_id = $2, transaction_id = $3
		WHERE id = $1 AND status = 'pending'
	`, id, paypalOrderID, transactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status domain.OrderStatus
		err = tx.QueryRow(ctx,
			`SELECT status FROM bridge.orders WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if status.Paid() {
			return ErrAlreadyPaid
		}
		return ErrOrderNotFound
	}

	if note != "" {
		if _, err = tx.Exec(ctx,
			`INSERT INTO bridge.order_notes (order_id, note) VALUES ($1, $2)`,
			id, note); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}

func (p *OrderRepository) AppendNote(ctx context.Context, id uuid.UUID, note string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO bridge.order_notes (order_id, note) VALUES ($1, $2)`, id, note)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/store"
	"kopitiam/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidPayment
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.Status = domain.SaleStatusOpen
	sale.TotalPaidCents = 0
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, table_code, status, total_paid_cents, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sale.ID, sale.TableCode, sale.Status, sale.TotalPaidCents, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.UnitPriceCents < 0 || item.QuantityTotal < 1 {
			return nil, store.ErrInvalidPayment
		}
		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.QuantityRemaining = item.QuantityTotal

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, name, unit_price_cents, quantity_total, quantity_remaining, tax_rate, discount_rate)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, sale.ID, item.Name, item.UnitPriceCents, item.QuantityTotal, item.QuantityRemaining, item.TaxRate, item.DiscountRate)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, table_code, status, total_paid_cents, created_at, closed_at
		FROM sales
		WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.TableCode, &sale.Status, &sale.TotalPaidCents, &sale.CreatedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		sale.ClosedAt = &t
	}

	items, err := s.listSaleItems(ctx, saleID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_price_cents, quantity_total, quantity_remaining, tax_rate, discount_rate
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 16)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.Name, &item.UnitPriceCents, &item.QuantityTotal, &item.QuantityRemaining, &item.TaxRate, &item.DiscountRate); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOpenSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_code, status, total_paid_cents, created_at
		FROM sales
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`, domain.SaleStatusOpen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TableCode, &sale.Status, &sale.TotalPaidCents, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.listSaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (s *Store) RecordPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.AmountCents < 1 || !payment.Method.Valid() {
		return nil, store.ErrInvalidPayment
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = $1 FOR UPDATE`, payment.SaleID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.SaleStatusOpen {
		return nil, store.ErrSaleClosed
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, session_id, split_id, method, amount_cents, reference, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, payment.ID, payment.SaleID, payment.SessionID, payment.SplitID, string(payment.Method), payment.AmountCents, payment.Reference, payment.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range payment.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_items (payment_id, item_id, quantity)
			VALUES ($1,$2,$3)
		`, payment.ID, line.ItemID, line.Quantity)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales SET total_paid_cents = total_paid_cents + $1 WHERE id = $2
	`, payment.AmountCents, payment.SaleID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	recorded := payment
	return &recorded, nil
}

func (s *Store) ListPayments(ctx context.Context, saleID string) ([]domain.Payment, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, session_id, split_id, method, amount_cents, reference, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 8)
	for rows.Next() {
		var p domain.Payment
		var method string
		if err := rows.Scan(&p.ID, &p.SaleID, &p.SessionID, &p.SplitID, &method, &p.AmountCents, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Method = domain.PaymentMethod(method)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range payments {
		lines, err := s.listPaymentItems(ctx, payments[i].ID)
		if err != nil {
			return nil, err
		}
		payments[i].Items = lines
	}
	return payments, nil
}

func (s *Store) listPaymentItems(ctx context.Context, paymentID string) ([]domain.PaymentLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, quantity
		FROM payment_items
		WHERE payment_id = $1
		ORDER BY item_id
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.PaymentLine, 0, 4)
	for rows.Next() {
		var line domain.PaymentLine
		if err := rows.Scan(&line.ItemID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) ApplySelectionPaid(ctx context.Context, saleID string, lines []domain.PaymentLine) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.SaleStatusOpen {
		return nil, store.ErrSaleClosed
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx, `
			UPDATE sale_items
			SET quantity_remaining = GREATEST(quantity_remaining - $1, 0)
			WHERE sale_id = $2 AND id = $3
		`, line.Quantity, saleID, line.ItemID)
		if err != nil {
			return nil, err
		}
	}

	var remaining int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_remaining), 0) FROM sale_items WHERE sale_id = $1
	`, saleID).Scan(&remaining)
	if err != nil {
		return nil, err
	}

	if remaining == 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE sales SET status = $1, closed_at = $2 WHERE id = $3
		`, domain.SaleStatusPaid, time.Now().UTC(), saleID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSale(ctx, saleID)
}

package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/models"
)

// OrderRepository handles contribution order database operations
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a completed order record
func (r *OrderRepository) Create(tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (
			order_id, transaction_id, payer_name, payer_email, is_guest,
			amount_cents, platform_tip_cents, tax_cents, total_cents,
			currency, quantity, interval, payment_method_id, country_iso
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	args := []interface{}{
		order.OrderID,
		order.TransactionID,
		order.PayerName,
		order.PayerEmail,
		order.IsGuest,
		order.AmountCents,
		order.PlatformTipCents,
		order.TaxCents,
		order.TotalCents,
		order.Currency,
		order.Quantity,
		order.Interval,
		order.PaymentMethodID,
		order.CountryISO,
	}

	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}

	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	order.ID = id
	return nil
}

// GetByOrderID retrieves an order by its public identifier
func (r *OrderRepository) GetByOrderID(orderID string) (*models.Order, error) {
	query := `
		SELECT id, order_id, transaction_id, payer_name, payer_email, is_guest,
			amount_cents, platform_tip_cents, tax_cents, total_cents,
			currency, quantity, interval, payment_method_id, country_iso, created_at
		FROM orders
		WHERE order_id = ?
	`

	var order models.Order
	err := r.db.QueryRow(query, orderID).Scan(
		&order.ID,
		&order.OrderID,
		&order.TransactionID,
		&order.PayerName,
		&order.PayerEmail,
		&order.IsGuest,
		&order.AmountCents,
		&order.PlatformTipCents,
		&order.TaxCents,
		&order.TotalCents,
		&order.Currency,
		&order.Quantity,
		&order.Interval,
		&order.PaymentMethodID,
		&order.CountryISO,
		&order.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// List returns all orders, newest first
func (r *OrderRepository) List() ([]*models.Order, error) {
	query := `
		SELECT id, order_id, transaction_id, payer_name, payer_email, is_guest,
			amount_cents, platform_tip_cents, tax_cents, total_cents,
			currency, quantity, interval, payment_method_id, country_iso, created_at
		FROM orders
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID,
			&order.OrderID,
			&order.TransactionID,
			&order.PayerName,
			&order.PayerEmail,
			&order.IsGuest,
			&order.AmountCents,
			&order.PlatformTipCents,
			&order.TaxCents,
			&order.TotalCents,
			&order.Currency,
			&order.Quantity,
			&order.Interval,
			&order.PaymentMethodID,
			&order.CountryISO,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}

	return orders, rows.Err()
}

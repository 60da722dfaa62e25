package models

import "time"

// Order is a completed contribution, persisted when a flow submits
// successfully. Monetary values are integer cents in Currency.
type Order struct {
	ID               int64     `json:"id" db:"id"`
	OrderID          string    `json:"order_id" db:"order_id"`
	TransactionID    string    `json:"transaction_id" db:"transaction_id"`
	PayerName        string    `json:"payer_name" db:"payer_name"`
	PayerEmail       string    `json:"payer_email" db:"payer_email"`
	IsGuest          bool      `json:"is_guest" db:"is_guest"`
	AmountCents      int64     `json:"amount_cents" db:"amount_cents"`
	PlatformTipCents int64     `json:"platform_tip_cents" db:"platform_tip_cents"`
	TaxCents         int64     `json:"tax_cents" db:"tax_cents"`
	TotalCents       int64     `json:"total_cents" db:"total_cents"`
	Currency         string    `json:"currency" db:"currency"`
	Quantity         int       `json:"quantity" db:"quantity"`
	Interval         string    `json:"interval,omitempty" db:"interval"`
	PaymentMethodID  string    `json:"payment_method_id" db:"payment_method_id"`
	CountryISO       string    `json:"country_iso,omitempty" db:"country_iso"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

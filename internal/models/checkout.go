package models

import "time"

// Plan is a purchasable credit package.
type Plan struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Price    int64  `db:"price" json:"price"`
	Currency string `db:"currency" json:"currency"`
	Credits  int64  `db:"credits" json:"credits"`
	Active   bool   `db:"active" json:"active"`
}

// PaymentStatus is shared by invoices and purchases.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusCanceled PaymentStatus = "CANCELED"
)

// Final reports whether no further transitions are expected.
func (s PaymentStatus) Final() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed || s == PaymentStatusCanceled
}

// Invoice records an order billed to a user.
type Invoice struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	PlanID    string        `db:"plan_id" json:"plan_id"`
	CouponID  *string       `db:"coupon_id" json:"coupon_id,omitempty"`
	Subtotal  int64         `db:"subtotal" json:"subtotal"`
	Discount  int64         `db:"discount" json:"discount"`
	Total     int64         `db:"total" json:"total"`
	Currency  string        `db:"currency" json:"currency"`
	Status    PaymentStatus `db:"status" json:"status"`
	Provider  string        `db:"provider" json:"provider"`
	Notes     string        `db:"notes" json:"-"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Purchase links an invoice to the credits it grants.
type Purchase struct {
	ID        string        `db:"id" json:"id"`
	InvoiceID string        `db:"invoice_id" json:"invoice_id"`
	UserID    string        `db:"user_id" json:"user_id"`
	PlanID    string        `db:"plan_id" json:"plan_id"`
	Credits   int64         `db:"credits" json:"credits"`
	Status    PaymentStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// CardToken is a provider-side reusable payment method reference.
type CardToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Provider  string    `db:"provider" json:"provider"`
	Token     string    `db:"token" json:"-"`
	Brand     string    `db:"brand" json:"brand"`
	Last4     string    `db:"last4" json:"last4"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

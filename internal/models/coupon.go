package models

import "time"

// DiscountType selects how a coupon discount is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Coupon is a promotional code redeemable at checkout.
type Coupon struct {
	ID               string       `db:"id" json:"id"`
	Code             string       `db:"code" json:"code"`
	Description      *string      `db:"description" json:"description,omitempty"`
	DiscountType     DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue    int64        `db:"discount_value" json:"discount_value"`
	IsActive         bool         `db:"is_active" json:"is_active"`
	StartsAt         *time.Time   `db:"starts_at" json:"starts_at,omitempty"`
	ExpiresAt        *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	UsageLimit       *int         `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount       int          `db:"usage_count" json:"usage_count"`
	RestrictedUserID *string      `db:"user_id" json:"user_id,omitempty"`
	RestrictedPlanID *string      `db:"plan_id" json:"plan_id,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// CouponFilter scopes admin listings.
type CouponFilter struct {
	ActiveOnly bool
	Search     string
	Page       int
	PageSize   int
}

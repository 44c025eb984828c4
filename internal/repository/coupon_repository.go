package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lingowow-api/internal/models"
)

const couponColumns = `id, code, description, discount_type, discount_value, is_active, starts_at, expires_at, usage_limit, usage_count, user_id, plan_id, created_at, updated_at`

// CouponRepository persists promotional coupons.
type CouponRepository struct {
	db *sqlx.DB
}

// NewCouponRepository constructs the repository.
func NewCouponRepository(db *sqlx.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByCode looks a coupon up case-insensitively.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1) LIMIT 1`
	var coupon models.Coupon
	if err := r.db.GetContext(ctx, &coupon, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find coupon by code: %w", err)
	}
	return &coupon, nil
}

// Create inserts a coupon.
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	const query = `INSERT INTO coupons (id, code, description, discount_type, discount_value, is_active, starts_at, expires_at, usage_limit, usage_count, user_id, plan_id, created_at, updated_at)
VALUES (:id, :code, :description, :discount_type, :discount_value, :is_active, :starts_at, :expires_at, :usage_limit, :usage_count, :user_id, :plan_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, coupon); err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// List pages through coupons, newest first.
func (r *CouponRepository) List(ctx context.Context, filter models.CouponFilter) ([]models.Coupon, int, error) {
	var f filterSet
	if filter.ActiveOnly {
		f.add("is_active = $%d", true)
	}
	if filter.Search != "" {
		f.add("UPPER(code) LIKE $%d", "%"+strings.ToUpper(filter.Search)+"%")
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM coupons%s ORDER BY created_at DESC LIMIT %d OFFSET %d", couponColumns, f.where(), limit, offset)
	var coupons []models.Coupon
	if err := r.db.SelectContext(ctx, &coupons, query, f.args...); err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM coupons"+f.where(), f.args...); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}
	return coupons, total, nil
}

// Redeem increments usage_count unless the usage limit is already reached.
// It reports whether the increment happened.
func (r *CouponRepository) Redeem(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	const query = `UPDATE coupons SET usage_count = usage_count + 1, updated_at = $2
WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`
	res, err := r.exec(exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("redeem coupon: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

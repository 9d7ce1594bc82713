package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discount types
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Voucher statuses. Status is a denormalized hint for listing UIs;
// validity is always recomputed from dates and counters.
type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "ACTIVE"
	VoucherStatusInactive VoucherStatus = "INACTIVE"
	VoucherStatusExpired  VoucherStatus = "EXPIRED"
	VoucherStatusUsedUp   VoucherStatus = "USED_UP"
)

// UserVoucher statuses
type UserVoucherStatus string

const (
	UserVoucherStatusClaimed UserVoucherStatus = "CLAIMED"
	UserVoucherStatusUsed    UserVoucherStatus = "USED"
	UserVoucherStatusExpired UserVoucherStatus = "EXPIRED"
)

// Voucher represents a discount code definition
type Voucher struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`

	// Discount details
	DiscountType  DiscountType     `json:"discount_type" db:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value" db:"discount_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount,omitempty" db:"max_discount"`

	// Requirements
	MinSpend decimal.Decimal `json:"min_spend" db:"min_spend"`

	// Usage limits
	UsageLimit        *int `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageLimitPerUser int  `json:"usage_limit_per_user" db:"usage_limit_per_user"`
	UsageCount        int  `json:"usage_count" db:"usage_count"`

	// Validity period
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`

	// Status
	Status VoucherStatus `json:"status" db:"status"`

	// Applicability rules (empty = applies to everything)
	ApplicableCategoryIDs []uuid.UUID `json:"applicable_category_ids,omitempty" db:"applicable_category_ids"`
	ApplicableProductIDs  []uuid.UUID `json:"applicable_product_ids,omitempty" db:"applicable_product_ids"`
	FirstOrderOnly        bool        `json:"first_order_only" db:"first_order_only"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserVoucher tracks a user's claim of a voucher and how many times
// they have used it. One row per (user, voucher), not per usage.
type UserVoucher struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	VoucherID uuid.UUID `json:"voucher_id" db:"voucher_id"`

	Status    UserVoucherStatus `json:"status" db:"status"`
	TimesUsed int               `json:"times_used" db:"times_used"`

	// Last usage details (overwritten each use, not a running total)
	UsedAt         *time.Time       `json:"used_at,omitempty" db:"used_at"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty" db:"discount_amount"`
	OrderID        *uuid.UUID       `json:"order_id,omitempty" db:"order_id"`

	ClaimedAt time.Time `json:"claimed_at" db:"claimed_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsValidAt reports whether the voucher is usable at the given moment:
// status ACTIVE, inside the window, under the global cap.
func (v *Voucher) IsValidAt(now time.Time) bool {
	if v.Status != VoucherStatusActive {
		return false
	}

	if now.Before(v.StartDate) || now.After(v.EndDate) {
		return false
	}

	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return false
	}

	return true
}

// IsExpiredAt reports whether the validity window has ended.
func (v *Voucher) IsExpiredAt(now time.Time) bool {
	return now.After(v.EndDate)
}

// RemainingUses returns how many global uses are left, nil when unlimited.
func (v *Voucher) RemainingUses() *int {
	if v.UsageLimit == nil {
		return nil
	}

	remaining := *v.UsageLimit - v.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// CanUse reports whether the holder can still use this voucher at the
// given moment (per-user limit and voucher validity combined).
func (uv *UserVoucher) CanUse(v *Voucher, now time.Time) bool {
	if uv.Status == UserVoucherStatusUsed || uv.Status == UserVoucherStatusExpired {
		return false
	}

	if uv.TimesUsed >= v.UsageLimitPerUser {
		return false
	}

	return v.IsValidAt(now)
}

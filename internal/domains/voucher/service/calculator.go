package service

import (
	"github.com/shopspring/decimal"

	"pharmacy-backend/internal/domains/voucher/model"
)

// DiscountCalculator handles the discount math
type DiscountCalculator struct{}

// NewDiscountCalculator creates a new instance
func NewDiscountCalculator() *DiscountCalculator {
	return &DiscountCalculator{}
}

// Calculate computes the discount for a voucher against an order total.
//
// Business Logic:
// 1. Percentage:
//   - discount = orderTotal × discount_value / 100
//   - capped by max_discount when set
//
// 2. Fixed amount:
//   - discount = discount_value
//
// 3. Final clamp: discount = min(discount, orderTotal); a voucher can
//    never push the final total below zero.
//
// Rounded to whole VND (no minor units), half-up.
func (c *DiscountCalculator) Calculate(v *model.Voucher, orderTotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch v.DiscountType {
	case model.DiscountTypePercentage:
		// e.g. 600,000 × 10 / 100 = 60,000
		discount = orderTotal.Mul(v.DiscountValue).Div(decimal.NewFromInt(100))

		if v.MaxDiscount != nil && discount.GreaterThan(*v.MaxDiscount) {
			discount = *v.MaxDiscount
		}

	case model.DiscountTypeFixedAmount:
		discount = v.DiscountValue

	default:
		return decimal.Zero
	}

	// e.g. order 50k with a 100k fixed voucher discounts only 50k
	if discount.GreaterThan(orderTotal) {
		discount = orderTotal
	}

	return discount.Round(0)
}

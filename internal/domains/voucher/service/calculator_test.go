package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pharmacy-backend/internal/domains/voucher/model"
)

func decPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func TestCalculator_Percentage(t *testing.T) {
	calc := NewDiscountCalculator()

	v := &model.Voucher{
		DiscountType:  model.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
	}

	got := calc.Calculate(v, decimal.NewFromInt(600000))
	assert.True(t, got.Equal(decimal.NewFromInt(60000)), "10%% of 600000, got %s", got)
}

func TestCalculator_PercentageCappedByMaxDiscount(t *testing.T) {
	calc := NewDiscountCalculator()

	v := &model.Voucher{
		DiscountType:  model.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxDiscount:   decPtr(decimal.NewFromInt(50000)),
	}

	// 10% of 600000 = 60000, capped at 50000
	got := calc.Calculate(v, decimal.NewFromInt(600000))
	assert.True(t, got.Equal(decimal.NewFromInt(50000)), "got %s", got)

	// Under the cap the raw percentage wins
	got = calc.Calculate(v, decimal.NewFromInt(300000))
	assert.True(t, got.Equal(decimal.NewFromInt(30000)), "got %s", got)
}

func TestCalculator_FixedAmount(t *testing.T) {
	calc := NewDiscountCalculator()

	v := &model.Voucher{
		DiscountType:  model.DiscountTypeFixedAmount,
		DiscountValue: decimal.NewFromInt(20000),
	}

	got := calc.Calculate(v, decimal.NewFromInt(150000))
	assert.True(t, got.Equal(decimal.NewFromInt(20000)), "got %s", got)
}

func TestCalculator_DiscountNeverExceedsOrderTotal(t *testing.T) {
	calc := NewDiscountCalculator()

	tests := []struct {
		name    string
		voucher *model.Voucher
		total   int64
		want    int64
	}{
		{
			name: "fixed larger than order",
			voucher: &model.Voucher{
				DiscountType:  model.DiscountTypeFixedAmount,
				DiscountValue: decimal.NewFromInt(100000),
			},
			total: 50000,
			want:  50000,
		},
		{
			name: "fixed equal to order",
			voucher: &model.Voucher{
				DiscountType:  model.DiscountTypeFixedAmount,
				DiscountValue: decimal.NewFromInt(50000),
			},
			total: 50000,
			want:  50000,
		},
		{
			name: "percentage on zero total",
			voucher: &model.Voucher{
				DiscountType:  model.DiscountTypePercentage,
				DiscountValue: decimal.NewFromInt(50),
			},
			total: 0,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Calculate(tt.voucher, decimal.NewFromInt(tt.total))
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s, want %d", got, tt.want)
		})
	}
}

func TestCalculator_RoundsToWholeVND(t *testing.T) {
	calc := NewDiscountCalculator()

	v := &model.Voucher{
		DiscountType:  model.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(15),
	}

	// 15% of 99999 = 14999.85 → rounds half-up to 15000
	got := calc.Calculate(v, decimal.NewFromInt(99999))
	assert.True(t, got.Equal(decimal.NewFromInt(15000)), "got %s", got)

	// 15% of 33333 = 4999.95 → 5000
	got = calc.Calculate(v, decimal.NewFromInt(33333))
	assert.True(t, got.Equal(decimal.NewFromInt(5000)), "got %s", got)
}

func TestCalculator_UnknownTypeYieldsZero(t *testing.T) {
	calc := NewDiscountCalculator()

	v := &model.Voucher{
		DiscountType:  model.DiscountType("MYSTERY"),
		DiscountValue: decimal.NewFromInt(10),
	}

	got := calc.Calculate(v, decimal.NewFromInt(100000))
	assert.True(t, got.IsZero(), "got %s", got)
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var entityNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func baseVoucher() *Voucher {
	return &Voucher{
		Code:              "TEST",
		Status:            VoucherStatusActive,
		UsageLimitPerUser: 1,
		StartDate:         entityNow.Add(-time.Hour),
		EndDate:           entityNow.Add(time.Hour),
	}
}

func TestVoucher_IsValidAt(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Voucher)
		want   bool
	}{
		{"active inside window", func(*Voucher) {}, true},
		{"inactive status", func(v *Voucher) { v.Status = VoucherStatusInactive }, false},
		{"before start", func(v *Voucher) { v.StartDate = entityNow.Add(time.Minute) }, false},
		{"after end", func(v *Voucher) { v.EndDate = entityNow.Add(-time.Minute) }, false},
		{"at exact start", func(v *Voucher) { v.StartDate = entityNow }, true},
		{"at exact end", func(v *Voucher) { v.EndDate = entityNow }, true},
		{"global cap reached", func(v *Voucher) { v.UsageLimit = intPtr(3); v.UsageCount = 3 }, false},
		{"under global cap", func(v *Voucher) { v.UsageLimit = intPtr(3); v.UsageCount = 2 }, true},
		{"unlimited usage", func(v *Voucher) { v.UsageCount = 100000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := baseVoucher()
			tt.mutate(v)
			assert.Equal(t, tt.want, v.IsValidAt(entityNow))
		})
	}
}

func TestVoucher_RemainingUses(t *testing.T) {
	v := baseVoucher()
	assert.Nil(t, v.RemainingUses(), "unlimited voucher has no remaining count")

	v.UsageLimit = intPtr(10)
	v.UsageCount = 4
	assert.Equal(t, 6, *v.RemainingUses())

	// Never negative, even if the counter overshot
	v.UsageCount = 12
	assert.Equal(t, 0, *v.RemainingUses())
}

func TestUserVoucher_CanUse(t *testing.T) {
	v := baseVoucher()
	v.UsageLimitPerUser = 2

	uv := &UserVoucher{Status: UserVoucherStatusClaimed, TimesUsed: 0}
	assert.True(t, uv.CanUse(v, entityNow))

	uv.TimesUsed = 1
	assert.True(t, uv.CanUse(v, entityNow))

	uv.TimesUsed = 2
	assert.False(t, uv.CanUse(v, entityNow))

	// USED status blocks regardless of counters
	uv = &UserVoucher{Status: UserVoucherStatusUsed, TimesUsed: 0}
	assert.False(t, uv.CanUse(v, entityNow))

	// An unusable voucher blocks a fresh claim too
	v.Status = VoucherStatusInactive
	uv = &UserVoucher{Status: UserVoucherStatusClaimed}
	assert.False(t, uv.CanUse(v, entityNow))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-backend/internal/domains/voucher/model"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

// activeVoucher builds a voucher valid at testNow.
func activeVoucher(code string) *model.Voucher {
	return &model.Voucher{
		ID:                uuid.New(),
		Code:              code,
		Name:              "Test voucher",
		DiscountType:      model.DiscountTypePercentage,
		DiscountValue:     decimal.NewFromInt(10),
		MinSpend:          decimal.Zero,
		UsageLimitPerUser: 1,
		StartDate:         testNow.Add(-24 * time.Hour),
		EndDate:           testNow.Add(24 * time.Hour),
		Status:            model.VoucherStatusActive,
	}
}

func newTestValidator(repo *fakeRepo) *Validator {
	val := NewValidator(repo, NewDiscountCalculator())
	val.now = func() time.Time { return testNow }
	return val
}

func applyReq(code string, total int64) *model.ApplyVoucherRequest {
	return &model.ApplyVoucherRequest{
		Code:       code,
		OrderTotal: decimal.NewFromInt(total),
	}
}

func requireRejection(t *testing.T, result *model.ValidationResult, want model.ErrorCode) {
	t.Helper()
	require.NotNil(t, result)
	assert.False(t, result.Valid)
	require.NotNil(t, result.ErrorCode)
	assert.Equal(t, want, *result.ErrorCode)
	require.NotNil(t, result.ErrorMessage)
	assert.NotEmpty(t, *result.ErrorMessage)
}

func TestValidator_UnknownCode(t *testing.T) {
	repo := newFakeRepo()
	val := newTestValidator(repo)

	result, voucher, err := val.Validate(context.Background(), applyReq("NOPE", 100000))
	require.NoError(t, err)
	assert.Nil(t, voucher)
	requireRejection(t, result, model.ErrCodeInvalidCode)
}

func TestValidator_CodeLookupIsCaseInsensitive(t *testing.T) {
	repo := newFakeRepo()
	repo.addVoucher(activeVoucher("SALE10"))
	val := newTestValidator(repo)

	result, _, err := val.Validate(context.Background(), applyReq("  sale10 ", 100000))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidator_StatusShortCircuits(t *testing.T) {
	tests := []struct {
		status model.VoucherStatus
		want   model.ErrorCode
	}{
		{model.VoucherStatusInactive, model.ErrCodeVoucherInactive},
		{model.VoucherStatusExpired, model.ErrCodeVoucherExpired},
		{model.VoucherStatusUsedUp, model.ErrCodeVoucherUsedUp},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			repo := newFakeRepo()
			v := activeVoucher("CODE1")
			v.Status = tt.status
			repo.addVoucher(v)

			result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("CODE1", 100000))
			require.NoError(t, err)
			requireRejection(t, result, tt.want)
		})
	}
}

func TestValidator_Window(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		repo := newFakeRepo()
		v := activeVoucher("SOON")
		v.StartDate = testNow.Add(time.Hour)
		v.EndDate = testNow.Add(48 * time.Hour)
		repo.addVoucher(v)

		result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("SOON", 100000))
		require.NoError(t, err)
		requireRejection(t, result, model.ErrCodeVoucherNotStarted)
	})

	t.Run("ended", func(t *testing.T) {
		repo := newFakeRepo()
		v := activeVoucher("LATE")
		v.StartDate = testNow.Add(-48 * time.Hour)
		v.EndDate = testNow.Add(-time.Hour)
		repo.addVoucher(v)

		result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("LATE", 100000))
		require.NoError(t, err)
		requireRejection(t, result, model.ErrCodeVoucherExpired)
	})

	t.Run("boundaries are inclusive", func(t *testing.T) {
		repo := newFakeRepo()
		v := activeVoucher("EDGE")
		v.StartDate = testNow
		v.EndDate = testNow
		repo.addVoucher(v)

		result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("EDGE", 100000))
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})
}

// Scenario: FLAT20K with usage_limit=1 already used once rejects even
// though its status field still says ACTIVE.
func TestValidator_GlobalCapReached(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("FLAT20K")
	v.DiscountType = model.DiscountTypeFixedAmount
	v.DiscountValue = decimal.NewFromInt(20000)
	v.UsageLimit = intPtr(1)
	v.UsageCount = 1
	repo.addVoucher(v)

	result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("FLAT20K", 100000))
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeVoucherUsedUp)
}

func TestValidator_MinSpendNotMet(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("SALE10")
	v.MinSpend = decimal.NewFromInt(100000)
	repo.addVoucher(v)

	result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("SALE10", 50000))
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeMinSpendNotMet)

	// The threshold rides along so the UI can show it
	require.NotNil(t, result.MinSpend)
	assert.True(t, result.MinSpend.Equal(decimal.NewFromInt(100000)))
}

func TestValidator_MinSpendBoundaryIsInclusive(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("SALE10")
	v.MinSpend = decimal.NewFromInt(100000)
	repo.addVoucher(v)

	result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("SALE10", 100000))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidator_PerUserLimit(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("ONCE")
	repo.addVoucher(v)

	userID := uuid.New()
	repo.userVouchers[uvKey(v.ID, userID)] = &model.UserVoucher{
		ID:        uuid.New(),
		UserID:    userID,
		VoucherID: v.ID,
		Status:    model.UserVoucherStatusUsed,
		TimesUsed: 1,
	}

	req := applyReq("ONCE", 100000)
	req.UserID = &userID

	result, _, err := newTestValidator(repo).Validate(context.Background(), req)
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeUserLimitReached)
}

func TestValidator_AnonymousSkipsPerUserLimit(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("ONCE")
	repo.addVoucher(v)

	// No UserID on the request: the per-user check never runs
	result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("ONCE", 100000))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidator_FirstOrderOnly(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("WELCOME")
	v.FirstOrderOnly = true
	repo.addVoucher(v)

	req := applyReq("WELCOME", 100000)
	result, _, err := newTestValidator(repo).Validate(context.Background(), req)
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeFirstOrderOnly)

	req.IsFirstOrder = true
	result, _, err = newTestValidator(repo).Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidator_CategoryRestriction(t *testing.T) {
	catA := mustParse("11111111-1111-1111-1111-111111111111")
	catB := mustParse("22222222-2222-2222-2222-222222222222")

	repo := newFakeRepo()
	v := activeVoucher("VITAMIN")
	v.ApplicableCategoryIDs = []uuid.UUID{catA}
	repo.addVoucher(v)

	val := newTestValidator(repo)

	// Order from another category
	req := applyReq("VITAMIN", 100000)
	req.CategoryIDs = []uuid.UUID{catB}
	result, _, err := val.Validate(context.Background(), req)
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeCategoryNotApplicable)

	// Order with no category info at all fails against a restricted
	// voucher too
	req.CategoryIDs = nil
	result, _, err = val.Validate(context.Background(), req)
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeCategoryNotApplicable)

	// One matching category is enough
	req.CategoryIDs = []uuid.UUID{catB, catA}
	result, _, err = val.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidator_ProductRestriction(t *testing.T) {
	prodA := mustParse("33333333-3333-3333-3333-333333333333")
	prodB := mustParse("44444444-4444-4444-4444-444444444444")

	repo := newFakeRepo()
	v := activeVoucher("PARACET")
	v.ApplicableProductIDs = []uuid.UUID{prodA}
	repo.addVoucher(v)

	req := applyReq("PARACET", 100000)
	req.ProductIDs = []uuid.UUID{prodB}

	result, _, err := newTestValidator(repo).Validate(context.Background(), req)
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeProductNotApplicable)
}

// A voucher failing several checks reports the earliest one.
func TestValidator_CheckOrdering(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("MULTI")
	v.MinSpend = decimal.NewFromInt(500000)
	v.FirstOrderOnly = true
	v.ApplicableCategoryIDs = []uuid.UUID{uuid.New()}
	repo.addVoucher(v)

	// Order fails min-spend, first-order and category at once;
	// min-spend is checked first, so that is the rejection.
	result, _, err := newTestValidator(repo).Validate(context.Background(), applyReq("MULTI", 100000))
	require.NoError(t, err)
	requireRejection(t, result, model.ErrCodeMinSpendNotMet)
}

// Scenario: SALE10 at 10% with a 50k cap on a 600k order.
func TestValidator_ValidResultShape(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("SALE10")
	v.MaxDiscount = decPtr(decimal.NewFromInt(50000))
	v.MinSpend = decimal.NewFromInt(100000)
	repo.addVoucher(v)

	result, voucher, err := newTestValidator(repo).Validate(context.Background(), applyReq("sale10", 600000))
	require.NoError(t, err)
	require.NotNil(t, voucher)
	require.True(t, result.Valid)

	assert.Nil(t, result.ErrorCode)
	require.NotNil(t, result.DiscountAmount)
	assert.True(t, result.DiscountAmount.Equal(decimal.NewFromInt(50000)), "got %s", result.DiscountAmount)
	require.NotNil(t, result.FinalTotal)
	assert.True(t, result.FinalTotal.Equal(decimal.NewFromInt(550000)), "got %s", result.FinalTotal)

	require.NotNil(t, result.VoucherInfo)
	assert.Equal(t, "SALE10", result.VoucherInfo.Code)
	assert.Equal(t, model.DiscountTypePercentage, result.VoucherInfo.DiscountType)
	assert.Equal(t, v.EndDate, result.VoucherInfo.ExpiresAt)
}

// Validation is read-only: repeated calls see identical state.
func TestValidator_IsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	v := activeVoucher("AGAIN")
	v.UsageLimit = intPtr(5)
	repo.addVoucher(v)

	val := newTestValidator(repo)
	for i := 0; i < 3; i++ {
		result, _, err := val.Validate(context.Background(), applyReq("AGAIN", 100000))
		require.NoError(t, err)
		assert.True(t, result.Valid)
	}

	assert.Equal(t, 0, repo.usageCount(v.ID))
	assert.Equal(t, 0, repo.ledgerSize())
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pharmacy-backend/internal/domains/voucher/model"
	"pharmacy-backend/internal/domains/voucher/repository"
)

// Validator runs the ordered validation pipeline. It is read-only:
// calling it any number of times with unchanged state returns the same
// result, so it doubles as the cart-preview calculator.
type Validator struct {
	repo       repository.VoucherRepository
	calculator *DiscountCalculator
	now        func() time.Time
}

// NewValidator creates a new instance
func NewValidator(repo repository.VoucherRepository, calculator *DiscountCalculator) *Validator {
	return &Validator{
		repo:       repo,
		calculator: calculator,
		now:        time.Now,
	}
}

// Validate evaluates a voucher code against an order snapshot.
//
// The checks run in a fixed order and short-circuit on the first
// failure; the order decides which rejection the user sees and must
// not be changed:
//
//  1. Lookup (code normalized)             → INVALID_CODE
//  2. Status must be ACTIVE                → VOUCHER_EXPIRED / VOUCHER_USED_UP / VOUCHER_INACTIVE
//  3. Window not yet started               → VOUCHER_NOT_STARTED
//  4. Window ended                         → VOUCHER_EXPIRED
//  5. Global usage cap                     → VOUCHER_USED_UP
//  6. Minimum spend                        → MIN_SPEND_NOT_MET
//  7. Per-user cap (identified users only) → USER_LIMIT_REACHED
//  8. First-order restriction              → FIRST_ORDER_ONLY
//  9. Category restriction                 → CATEGORY_NOT_APPLICABLE
// 10. Product restriction                  → PRODUCT_NOT_APPLICABLE
// 11. Discount computation                 → valid result
//
// Business invalidity is a result value, never a Go error; only
// infrastructure failures come back as errors. The loaded voucher is
// returned alongside a valid result so the commit step can reuse it.
func (val *Validator) Validate(ctx context.Context, req *model.ApplyVoucherRequest) (*model.ValidationResult, *model.Voucher, error) {
	req.NormalizeCode()

	// 1. Lookup
	voucher, err := val.repo.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return model.NewInvalidResult(model.ErrCodeInvalidCode), nil, nil
		}
		return nil, nil, fmt.Errorf("load voucher: %w", err)
	}

	now := val.now()

	// 2. Status short-circuit. Advisory, but intentional UX: a voucher
	// parked INACTIVE by an admin is rejected even inside its window.
	if voucher.Status != model.VoucherStatusActive {
		switch voucher.Status {
		case model.VoucherStatusExpired:
			return model.NewInvalidResult(model.ErrCodeVoucherExpired), nil, nil
		case model.VoucherStatusUsedUp:
			return model.NewInvalidResult(model.ErrCodeVoucherUsedUp), nil, nil
		default:
			return model.NewInvalidResult(model.ErrCodeVoucherInactive), nil, nil
		}
	}

	// 3-4. Validity window
	if now.Before(voucher.StartDate) {
		return model.NewInvalidResult(model.ErrCodeVoucherNotStarted), nil, nil
	}

	if now.After(voucher.EndDate) {
		return model.NewInvalidResult(model.ErrCodeVoucherExpired), nil, nil
	}

	// 5. Global usage cap
	if voucher.UsageLimit != nil && voucher.UsageCount >= *voucher.UsageLimit {
		return model.NewInvalidResult(model.ErrCodeVoucherUsedUp), nil, nil
	}

	// 6. Minimum spend, with the threshold attached for display
	if req.OrderTotal.LessThan(voucher.MinSpend) {
		result := model.NewInvalidResult(model.ErrCodeMinSpendNotMet)
		minSpend := voucher.MinSpend
		result.MinSpend = &minSpend
		return result, nil, nil
	}

	// 7. Per-user cap, identified actors only. Anonymous checkout
	// skips this check entirely.
	if req.UserID != nil {
		userUsage := 0
		userVoucher, err := val.repo.FindUserVoucher(ctx, voucher.ID, *req.UserID)
		if err != nil && !errors.Is(err, model.ErrUserVoucherNotFound) {
			return nil, nil, fmt.Errorf("load user voucher: %w", err)
		}
		if userVoucher != nil {
			userUsage = userVoucher.TimesUsed
		}

		if userUsage >= voucher.UsageLimitPerUser {
			return model.NewInvalidResult(model.ErrCodeUserLimitReached), nil, nil
		}
	}

	// 8. First-order restriction; the caller is the source of truth
	// for is_first_order, order history is not queried here.
	if voucher.FirstOrderOnly && !req.IsFirstOrder {
		return model.NewInvalidResult(model.ErrCodeFirstOrderOnly), nil, nil
	}

	// 9-10. Applicability: an empty restriction set means the voucher
	// applies to everything; otherwise the order must intersect it.
	if len(voucher.ApplicableCategoryIDs) > 0 {
		if !intersects(voucher.ApplicableCategoryIDs, req.CategoryIDs) {
			return model.NewInvalidResult(model.ErrCodeCategoryNotApplicable), nil, nil
		}
	}

	if len(voucher.ApplicableProductIDs) > 0 {
		if !intersects(voucher.ApplicableProductIDs, req.ProductIDs) {
			return model.NewInvalidResult(model.ErrCodeProductNotApplicable), nil, nil
		}
	}

	// 11. Discount computation
	discount := val.calculator.Calculate(voucher, req.OrderTotal)

	return model.NewValidResult(voucher, discount, req.OrderTotal), voucher, nil
}

// intersects reports whether the two id sets share at least one element.
func intersects(a, b []uuid.UUID) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}

	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}

	return false
}

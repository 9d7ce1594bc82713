package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharmacy-backend/internal/domains/voucher/model"
	"pharmacy-backend/internal/domains/voucher/repository"
	"pharmacy-backend/pkg/cache"
	"pharmacy-backend/pkg/logger"
)

const activeListCachePrefix = "vouchers:active"

// voucherService wires the validator, calculator and code generator
// on top of the repository.
type voucherService struct {
	repo      repository.VoucherRepository
	validator *Validator
	codegen   *CodeGenerator
	cache     cache.Cache
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewVoucherService creates a new service instance. cache may be nil
// (listings are then always served from the database).
func NewVoucherService(
	repo repository.VoucherRepository,
	c cache.Cache,
	cacheTTL time.Duration,
	codegenMaxRetry int,
) ServiceInterface {
	calculator := NewDiscountCalculator()
	return &voucherService{
		repo:      repo,
		validator: NewValidator(repo, calculator),
		codegen:   NewCodeGenerator(repo, codegenMaxRetry),
		cache:     c,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// -------------------------------------------------------------------
// VALIDATION & APPLICATION
// -------------------------------------------------------------------

// Validate runs the read-only pipeline; safe to call repeatedly for
// cart previews.
func (s *voucherService) Validate(ctx context.Context, req *model.ApplyVoucherRequest) (*model.ValidationResult, error) {
	result, _, err := s.validator.Validate(ctx, req)
	return result, err
}

// Apply validates and, on success, commits the usage.
//
// Business Logic Flow:
// 1. Run the full validation pipeline; an invalid result comes back
//    unchanged, nothing is written.
// 2. Commit through RecordUsage: per-user and global conditional
//    increments plus the ledger upsert in one transaction.
// 3. A lost race (another request took the last slot between the read
//    and the commit) surfaces as the matching rejection, exactly as if
//    validation had seen the final counter value.
func (s *voucherService) Apply(ctx context.Context, req *model.ApplyVoucherRequest) (*model.ValidationResult, error) {
	result, voucher, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if !result.Valid {
		return result, nil
	}

	rec := &repository.UsageRecord{
		VoucherID:         voucher.ID,
		UserID:            req.UserID,
		DiscountAmount:    *result.DiscountAmount,
		OrderID:           req.OrderID,
		UsageLimitPerUser: voucher.UsageLimitPerUser,
	}

	if _, err := s.repo.RecordUsage(ctx, rec); err != nil {
		switch {
		case errors.Is(err, model.ErrUserLimitReached):
			return model.NewInvalidResult(model.ErrCodeUserLimitReached), nil
		case errors.Is(err, model.ErrVoucherUsedUp):
			return model.NewInvalidResult(model.ErrCodeVoucherUsedUp), nil
		}
		return nil, fmt.Errorf("apply voucher: %w", err)
	}

	result.Applied = true
	return result, nil
}

// -------------------------------------------------------------------
// CLAIM FLOW
// -------------------------------------------------------------------

// Claim saves a voucher to the user's account for later use.
//
// Business Logic Flow:
// 1. The voucher must exist and pass the status/window/global-cap
//    checks. The order-specific checks are skipped, no order exists
//    yet.
// 2. A second claim by the same user conflicts; the existing row is
//    returned inside the error details so the client can show it.
// 3. The fresh row starts at CLAIMED with zero uses.
func (s *voucherService) Claim(ctx context.Context, code string, userID uuid.UUID) (*model.UserVoucherResponse, error) {
	req := model.ClaimVoucherRequest{Code: code}
	req.NormalizeCode()

	voucher, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return nil, model.ErrVoucherNotFoundApp
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	now := s.now()
	if !voucher.IsValidAt(now) {
		return nil, &model.AppError{
			Code:       s.claimRejectionCode(voucher, now),
			Message:    s.claimRejectionCode(voucher, now).Message(),
			HTTPStatus: 400,
		}
	}

	existing, err := s.repo.FindUserVoucher(ctx, voucher.ID, userID)
	if err != nil && !errors.Is(err, model.ErrUserVoucherNotFound) {
		return nil, fmt.Errorf("load user voucher: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyClaimedError(existing)
	}

	uv := &model.UserVoucher{
		UserID:    userID,
		VoucherID: voucher.ID,
		Status:    model.UserVoucherStatusClaimed,
		TimesUsed: 0,
	}

	if err := s.repo.CreateUserVoucher(ctx, uv); err != nil {
		if errors.Is(err, model.ErrDuplicateClaim) {
			// Lost a race with a concurrent claim; surface the row the
			// winner created.
			existing, lookupErr := s.repo.FindUserVoucher(ctx, voucher.ID, userID)
			if lookupErr == nil {
				return nil, model.NewAlreadyClaimedError(existing)
			}
		}
		return nil, fmt.Errorf("create user voucher: %w", err)
	}

	return model.NewUserVoucherResponse(uv, voucher, now), nil
}

// claimRejectionCode maps an unusable voucher to the most precise
// rejection, mirroring the status/window/cap check order.
func (s *voucherService) claimRejectionCode(v *model.Voucher, now time.Time) model.ErrorCode {
	switch v.Status {
	case model.VoucherStatusExpired:
		return model.ErrCodeVoucherExpired
	case model.VoucherStatusUsedUp:
		return model.ErrCodeVoucherUsedUp
	case model.VoucherStatusActive:
		// fall through to window/cap checks
	default:
		return model.ErrCodeVoucherInactive
	}

	if now.Before(v.StartDate) {
		return model.ErrCodeVoucherNotStarted
	}
	if now.After(v.EndDate) {
		return model.ErrCodeVoucherExpired
	}
	return model.ErrCodeVoucherUsedUp
}

// -------------------------------------------------------------------
// PUBLIC READS
// -------------------------------------------------------------------

// Check is the quick existence/validity probe behind the code input
// field on the cart page.
func (s *voucherService) Check(ctx context.Context, code string) (*model.CheckVoucherResponse, error) {
	req := model.ClaimVoucherRequest{Code: code}
	req.NormalizeCode()

	voucher, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return &model.CheckVoucherResponse{
				Exists: false,
				Valid:  false,
				Reason: "not_found",
			}, nil
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	now := s.now()
	resp := &model.CheckVoucherResponse{
		Exists: true,
		Valid:  voucher.IsValidAt(now),
	}

	if resp.Valid {
		resp.Voucher = model.NewVoucherResponse(voucher)
	} else {
		switch {
		case voucher.IsExpiredAt(now):
			resp.Reason = "expired"
		case voucher.Status != model.VoucherStatusActive:
			resp.Reason = "inactive"
		case voucher.UsageLimit != nil && voucher.UsageCount >= *voucher.UsageLimit:
			resp.Reason = "used_up"
		}
	}

	return resp, nil
}

// ListAvailable returns ACTIVE vouchers inside their window, best
// discount first. The listing is cached briefly; usage counters are
// never cached, so the cache cannot make validation lie.
func (s *voucherService) ListAvailable(ctx context.Context, page, limit int) ([]*model.VoucherResponse, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	type cachedListing struct {
		Vouchers []*model.VoucherResponse `json:"vouchers"`
		Total    int                      `json:"total"`
	}

	cacheKey := fmt.Sprintf("%s:p%d:l%d", activeListCachePrefix, page, limit)

	if s.cache != nil {
		var cached cachedListing
		found, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			// Cache failure is non-critical, fall through to the DB
			logger.Warn("voucher listing cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if found {
			return cached.Vouchers, cached.Total, nil
		}
	}

	vouchers, total, err := s.repo.ListActive(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*model.VoucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		responses = append(responses, model.NewVoucherResponse(v))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, cachedListing{Vouchers: responses, Total: total}, s.cacheTTL); err != nil {
			logger.Warn("voucher listing cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return responses, total, nil
}

// GetByCode returns an ACTIVE voucher's public detail.
func (s *voucherService) GetByCode(ctx context.Context, code string) (*model.VoucherResponse, error) {
	req := model.ClaimVoucherRequest{Code: code}
	req.NormalizeCode()

	voucher, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return nil, model.ErrVoucherNotFoundApp
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	// The public detail view only exposes active vouchers
	if voucher.Status != model.VoucherStatusActive {
		return nil, model.ErrVoucherNotFoundApp
	}

	return model.NewVoucherResponse(voucher), nil
}

// ListUserVouchers returns the user's claimed vouchers, newest claim
// first, with a computed can_use flag on each.
func (s *voucherService) ListUserVouchers(ctx context.Context, userID uuid.UUID) ([]*model.UserVoucherResponse, error) {
	userVouchers, vouchers, err := s.repo.ListUserVouchers(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]*model.UserVoucherResponse, 0, len(userVouchers))
	for i, uv := range userVouchers {
		responses = append(responses, model.NewUserVoucherResponse(uv, vouchers[i], now))
	}

	return responses, nil
}

// -------------------------------------------------------------------
// ADMIN OPERATIONS
// -------------------------------------------------------------------

// CreateVoucher creates a voucher from an admin request. The request
// is assumed already validated (percentage <= 100, end after start).
func (s *voucherService) CreateVoucher(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error) {
	req.NormalizeCode()

	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}

	voucher := &model.Voucher{
		Code:                  req.Code,
		Name:                  req.Name,
		Description:           req.Description,
		DiscountType:          model.DiscountType(req.DiscountType),
		DiscountValue:         decimal.NewFromFloat(req.DiscountValue),
		MinSpend:              decimal.NewFromFloat(req.MinSpend),
		UsageLimit:            req.UsageLimit,
		UsageLimitPerUser:     req.UsageLimitPerUser,
		StartDate:             startDate,
		EndDate:               endDate,
		Status:                model.VoucherStatusActive,
		ApplicableCategoryIDs: req.ApplicableCategoryIDs,
		ApplicableProductIDs:  req.ApplicableProductIDs,
		FirstOrderOnly:        req.FirstOrderOnly,
	}
	if req.MaxDiscount != nil {
		maxDiscount := decimal.NewFromFloat(*req.MaxDiscount)
		voucher.MaxDiscount = &maxDiscount
	}

	if err := s.repo.Create(ctx, voucher); err != nil {
		if errors.Is(err, model.ErrDuplicateCode) {
			return nil, model.ErrDuplicateCodeApp
		}
		return nil, fmt.Errorf("create voucher: %w", err)
	}

	s.invalidateListingCache(ctx)

	return model.NewVoucherResponse(voucher), nil
}

// GetVoucher returns a voucher by ID (admin detail view).
func (s *voucherService) GetVoucher(ctx context.Context, id uuid.UUID) (*model.VoucherResponse, error) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return nil, model.ErrVoucherNotFoundApp
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	return model.NewVoucherResponse(voucher), nil
}

// ListVouchers returns the filtered admin listing.
func (s *voucherService) ListVouchers(ctx context.Context, filter *model.ListVouchersFilter) ([]*model.VoucherResponse, int, error) {
	vouchers, total, err := s.repo.ListAdmin(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]*model.VoucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		responses = append(responses, model.NewVoucherResponse(v))
	}

	return responses, total, nil
}

// UpdateVoucher applies a partial update; nil fields keep their value.
func (s *voucherService) UpdateVoucher(ctx context.Context, id uuid.UUID, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error) {
	voucher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return nil, model.ErrVoucherNotFoundApp
		}
		return nil, fmt.Errorf("load voucher: %w", err)
	}

	if req.Name != nil {
		voucher.Name = *req.Name
	}
	if req.Description != nil {
		voucher.Description = req.Description
	}
	if req.MaxDiscount != nil {
		voucher.MaxDiscount = req.MaxDiscount
	}
	if req.MinSpend != nil {
		voucher.MinSpend = *req.MinSpend
	}
	if req.UsageLimit != nil {
		voucher.UsageLimit = req.UsageLimit
	}
	if req.UsageLimitPerUser != nil {
		voucher.UsageLimitPerUser = *req.UsageLimitPerUser
	}
	if req.StartDate != nil {
		startDate, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			return nil, fmt.Errorf("parse start_date: %w", err)
		}
		voucher.StartDate = startDate
	}
	if req.EndDate != nil {
		endDate, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("parse end_date: %w", err)
		}
		voucher.EndDate = endDate
	}
	if req.Status != nil {
		voucher.Status = model.VoucherStatus(*req.Status)
	}
	if req.ApplicableCategoryIDs != nil {
		voucher.ApplicableCategoryIDs = req.ApplicableCategoryIDs
	}
	if req.ApplicableProductIDs != nil {
		voucher.ApplicableProductIDs = req.ApplicableProductIDs
	}
	if req.FirstOrderOnly != nil {
		voucher.FirstOrderOnly = *req.FirstOrderOnly
	}

	// The window invariant holds after any combination of updates
	if !voucher.EndDate.After(voucher.StartDate) {
		return nil, &model.AppError{
			Code:       model.ErrCodeValidationFailed,
			Message:    "Thời gian kết thúc phải sau thời gian bắt đầu",
			HTTPStatus: 400,
		}
	}

	if err := s.repo.Update(ctx, voucher); err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return nil, model.ErrVoucherNotFoundApp
		}
		return nil, fmt.Errorf("update voucher: %w", err)
	}

	s.invalidateListingCache(ctx)

	return model.NewVoucherResponse(voucher), nil
}

// DeactivateVoucher parks a voucher as INACTIVE without deleting its
// usage history.
func (s *voucherService) DeactivateVoucher(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, id, model.VoucherStatusInactive); err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			return model.ErrVoucherNotFoundApp
		}
		return fmt.Errorf("deactivate voucher: %w", err)
	}

	s.invalidateListingCache(ctx)

	return nil
}

// GenerateCode produces a fresh, non-colliding voucher code.
func (s *voucherService) GenerateCode(ctx context.Context, length int, prefix string) (string, error) {
	return s.codegen.Generate(ctx, length, prefix)
}

// invalidateListingCache drops the cached public listing after any
// admin write. Best-effort: a stale listing only mislabels the
// storefront for a TTL, validation never reads it.
func (s *voucherService) invalidateListingCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, activeListCachePrefix+":*"); err != nil {
		logger.Warn("voucher listing cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmacy-backend/internal/domains/voucher/model"
	"pharmacy-backend/internal/domains/voucher/repository"
)

// fakeRepo is an in-memory VoucherRepository. RecordUsage mirrors the
// SQL commit: both cap checks pass or nothing is persisted, guarded by
// one mutex so concurrent appliers serialize like database row locks.
type fakeRepo struct {
	mu           sync.Mutex
	vouchers     map[uuid.UUID]*model.Voucher
	byCode       map[string]uuid.UUID
	userVouchers map[string]*model.UserVoucher

	// Test hooks
	beforeRecordUsage func()
	checkCodeExists   func(code string) (bool, error)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		vouchers:     make(map[uuid.UUID]*model.Voucher),
		byCode:       make(map[string]uuid.UUID),
		userVouchers: make(map[string]*model.UserVoucher),
	}
}

func (r *fakeRepo) addVoucher(v *model.Voucher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	r.vouchers[v.ID] = v
	r.byCode[strings.ToUpper(v.Code)] = v.ID
}

func uvKey(voucherID, userID uuid.UUID) string {
	return voucherID.String() + "|" + userID.String()
}

func (r *fakeRepo) FindByCode(_ context.Context, code string) (*model.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, model.ErrVoucherNotFound
	}
	copied := *r.vouchers[id]
	return &copied, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[id]
	if !ok {
		return nil, model.ErrVoucherNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeRepo) FindUserVoucher(_ context.Context, voucherID, userID uuid.UUID) (*model.UserVoucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uv, ok := r.userVouchers[uvKey(voucherID, userID)]
	if !ok {
		return nil, model.ErrUserVoucherNotFound
	}
	copied := *uv
	return &copied, nil
}

func (r *fakeRepo) ListActive(_ context.Context, page, limit int) ([]*model.Voucher, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []*model.Voucher
	for _, v := range r.vouchers {
		if v.Status == model.VoucherStatusActive && !now.Before(v.StartDate) && !now.After(v.EndDate) {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (r *fakeRepo) ListUserVouchers(_ context.Context, userID uuid.UUID) ([]*model.UserVoucher, []*model.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var uvs []*model.UserVoucher
	var vs []*model.Voucher
	for _, uv := range r.userVouchers {
		if uv.UserID == userID {
			uvCopy := *uv
			vCopy := *r.vouchers[uv.VoucherID]
			uvs = append(uvs, &uvCopy)
			vs = append(vs, &vCopy)
		}
	}
	return uvs, vs, nil
}

func (r *fakeRepo) ListAdmin(_ context.Context, _ *model.ListVouchersFilter) ([]*model.Voucher, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Voucher
	for _, v := range r.vouchers {
		copied := *v
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (r *fakeRepo) CheckCodeExists(_ context.Context, code string, _ *uuid.UUID) (bool, error) {
	if r.checkCodeExists != nil {
		return r.checkCodeExists(code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byCode[strings.ToUpper(code)]
	return ok, nil
}

func (r *fakeRepo) Create(_ context.Context, v *model.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[strings.ToUpper(v.Code)]; ok {
		return model.ErrDuplicateCode
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	copied := *v
	r.vouchers[v.ID] = &copied
	r.byCode[strings.ToUpper(v.Code)] = v.ID
	return nil
}

func (r *fakeRepo) Update(_ context.Context, v *model.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.vouchers[v.ID]
	if !ok {
		return model.ErrVoucherNotFound
	}
	// Counters are repository-owned, an Update never touches them
	v.UsageCount = stored.UsageCount
	v.UpdatedAt = time.Now()
	copied := *v
	r.vouchers[v.ID] = &copied
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.VoucherStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vouchers[id]
	if !ok {
		return model.ErrVoucherNotFound
	}
	v.Status = status
	v.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) CreateUserVoucher(_ context.Context, uv *model.UserVoucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := uvKey(uv.VoucherID, uv.UserID)
	if _, ok := r.userVouchers[key]; ok {
		return model.ErrDuplicateClaim
	}
	if uv.ID == uuid.Nil {
		uv.ID = uuid.New()
	}
	uv.ClaimedAt = time.Now()
	uv.UpdatedAt = uv.ClaimedAt
	copied := *uv
	r.userVouchers[key] = &copied
	return nil
}

func (r *fakeRepo) RecordUsage(_ context.Context, rec *repository.UsageRecord) (*model.UserVoucher, error) {
	if r.beforeRecordUsage != nil {
		r.beforeRecordUsage()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vouchers[rec.VoucherID]
	if !ok {
		return nil, model.ErrVoucherNotFound
	}

	var uv *model.UserVoucher
	if rec.UserID != nil {
		uv = r.userVouchers[uvKey(rec.VoucherID, *rec.UserID)]
		if uv != nil && uv.TimesUsed >= rec.UsageLimitPerUser {
			return nil, model.ErrUserLimitReached
		}
	}

	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return nil, model.ErrVoucherUsedUp
	}

	// Both caps have room; commit everything
	now := time.Now()
	if rec.UserID != nil {
		if uv == nil {
			uv = &model.UserVoucher{
				ID:        uuid.New(),
				UserID:    *rec.UserID,
				VoucherID: rec.VoucherID,
				Status:    model.UserVoucherStatusClaimed,
				ClaimedAt: now,
			}
			r.userVouchers[uvKey(rec.VoucherID, *rec.UserID)] = uv
		}
		uv.TimesUsed++
		uv.UsedAt = &now
		amount := rec.DiscountAmount
		uv.DiscountAmount = &amount
		uv.OrderID = rec.OrderID
		uv.UpdatedAt = now
		if uv.TimesUsed >= rec.UsageLimitPerUser {
			uv.Status = model.UserVoucherStatusUsed
		}
	}

	v.UsageCount++
	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		v.Status = model.VoucherStatusUsedUp
	}
	v.UpdatedAt = now

	if uv == nil {
		return nil, nil
	}
	copied := *uv
	return &copied, nil
}

// usageCount reads the current global counter.
func (r *fakeRepo) usageCount(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vouchers[id].UsageCount
}

// ledgerSize counts stored user-voucher rows.
func (r *fakeRepo) ledgerSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userVouchers)
}

var _ repository.VoucherRepository = (*fakeRepo)(nil)

// sanity check helper used by a few tests
func mustParse(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic(fmt.Sprintf("bad uuid literal: %v", err))
	}
	return id
}

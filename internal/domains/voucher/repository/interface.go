package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharmacy-backend/internal/domains/voucher/model"
)

// UsageRecord describes one successful application to commit: which
// voucher, by whom (nil for anonymous), and the usage details to stamp
// on the ledger row.
type UsageRecord struct {
	VoucherID      uuid.UUID
	UserID         *uuid.UUID
	DiscountAmount decimal.Decimal
	OrderID        *uuid.UUID

	// Per-user cap, copied from the voucher so the conditional
	// increment can enforce it in SQL.
	UsageLimitPerUser int
}

// VoucherRepository is the persistence contract for the voucher domain.
type VoucherRepository interface {
	// Reads
	FindByCode(ctx context.Context, code string) (*model.Voucher, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error)
	FindUserVoucher(ctx context.Context, voucherID, userID uuid.UUID) (*model.UserVoucher, error)
	ListActive(ctx context.Context, page, limit int) ([]*model.Voucher, int, error)
	ListUserVouchers(ctx context.Context, userID uuid.UUID) ([]*model.UserVoucher, []*model.Voucher, error)
	ListAdmin(ctx context.Context, filter *model.ListVouchersFilter) ([]*model.Voucher, int, error)
	CheckCodeExists(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error)

	// Writes
	Create(ctx context.Context, v *model.Voucher) error
	Update(ctx context.Context, v *model.Voucher) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.VoucherStatus) error
	CreateUserVoucher(ctx context.Context, uv *model.UserVoucher) error

	// RecordUsage commits one successful application atomically: the
	// per-user conditional increment (when UserID is set) and the
	// global conditional increment run in a single transaction.
	// Returns model.ErrUserLimitReached or model.ErrVoucherUsedUp when
	// a cap has no slot left; nothing is persisted in that case.
	// The returned row is the updated ledger entry, nil for anonymous.
	RecordUsage(ctx context.Context, rec *UsageRecord) (*model.UserVoucher, error)
}

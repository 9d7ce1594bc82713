package service

import (
	"context"

	"github.com/google/uuid"

	"pharmacy-backend/internal/domains/voucher/model"
)

// ServiceInterface is the voucher domain's business logic contract.
type ServiceInterface interface {
	// Validation & application
	Validate(ctx context.Context, req *model.ApplyVoucherRequest) (*model.ValidationResult, error)
	Apply(ctx context.Context, req *model.ApplyVoucherRequest) (*model.ValidationResult, error)

	// Claim flow
	Claim(ctx context.Context, code string, userID uuid.UUID) (*model.UserVoucherResponse, error)

	// Public reads
	Check(ctx context.Context, code string) (*model.CheckVoucherResponse, error)
	ListAvailable(ctx context.Context, page, limit int) ([]*model.VoucherResponse, int, error)
	GetByCode(ctx context.Context, code string) (*model.VoucherResponse, error)
	ListUserVouchers(ctx context.Context, userID uuid.UUID) ([]*model.UserVoucherResponse, error)

	// Admin
	CreateVoucher(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (*model.VoucherResponse, error)
	ListVouchers(ctx context.Context, filter *model.ListVouchersFilter) ([]*model.VoucherResponse, int, error)
	UpdateVoucher(ctx context.Context, id uuid.UUID, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error)
	DeactivateVoucher(ctx context.Context, id uuid.UUID) error
	GenerateCode(ctx context.Context, length int, prefix string) (string, error)
}

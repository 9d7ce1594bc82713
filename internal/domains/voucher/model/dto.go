package model

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -------------------------------------------------------------------
// PUBLIC REQUESTS
// -------------------------------------------------------------------

// ApplyVoucherRequest - request for validate/calculate/apply.
// UserID comes from the JWT, never from the body; nil means anonymous
// (guest checkout).
type ApplyVoucherRequest struct {
	Code         string          `json:"code"`
	OrderTotal   decimal.Decimal `json:"order_total"`
	CategoryIDs  []uuid.UUID     `json:"category_ids"`
	ProductIDs   []uuid.UUID     `json:"product_ids"`
	IsFirstOrder bool            `json:"is_first_order"`
	OrderID      *uuid.UUID      `json:"order_id"`
	UserID       *uuid.UUID      `json:"-"`
}

// Validate validates ApplyVoucherRequest
func (r ApplyVoucherRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code,
			validation.Required.Error("Mã voucher không được để trống"),
			validation.Length(1, 50).Error("Mã voucher phải từ 1-50 ký tự"),
		),
		validation.Field(&r.OrderTotal,
			validation.By(r.validateOrderTotal),
		),
	)
}

// validateOrderTotal rejects negative totals; decimals need a custom
// rule, ozzo's Min only compares numbers and times.
func (r ApplyVoucherRequest) validateOrderTotal(value interface{}) error {
	if r.OrderTotal.IsNegative() {
		return errors.New("tổng tiền phải >= 0")
	}
	return nil
}

// NormalizeCode uppercases and trims the code before lookup.
func (r *ApplyVoucherRequest) NormalizeCode() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

// ClaimVoucherRequest - request to save a voucher to the user's account
type ClaimVoucherRequest struct {
	Code string `json:"code"`
}

// Validate validates ClaimVoucherRequest
func (r ClaimVoucherRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code,
			validation.Required.Error("Mã voucher không được để trống"),
			validation.Length(1, 50).Error("Mã voucher phải từ 1-50 ký tự"),
		),
	)
}

// NormalizeCode uppercases and trims the code before lookup.
func (r *ClaimVoucherRequest) NormalizeCode() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

// -------------------------------------------------------------------
// ADMIN REQUESTS
// -------------------------------------------------------------------

// CreateVoucherRequest - request to create a new voucher
type CreateVoucherRequest struct {
	Code                  string      `json:"code"`
	Name                  string      `json:"name"`
	Description           *string     `json:"description"`
	DiscountType          string      `json:"discount_type"`
	DiscountValue         float64     `json:"discount_value"`
	MaxDiscount           *float64    `json:"max_discount"`
	MinSpend              float64     `json:"min_spend"`
	UsageLimit            *int        `json:"usage_limit"`
	UsageLimitPerUser     int         `json:"usage_limit_per_user"`
	StartDate             string      `json:"start_date"` // RFC3339 format
	EndDate               string      `json:"end_date"`
	ApplicableCategoryIDs []uuid.UUID `json:"applicable_category_ids"`
	ApplicableProductIDs  []uuid.UUID `json:"applicable_product_ids"`
	FirstOrderOnly        bool        `json:"first_order_only"`
}

// Validate validates CreateVoucherRequest
func (r CreateVoucherRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code,
			validation.Required.Error("Mã voucher bắt buộc"),
			validation.Length(3, 50).Error("Mã voucher phải từ 3-50 ký tự"),
			validation.Match(regexp.MustCompile("^[A-Z0-9]+$")).Error("Mã chỉ được chứa chữ hoa và số"),
		),
		validation.Field(&r.Name,
			validation.Required.Error("Tên voucher bắt buộc"),
			validation.Length(3, 200).Error("Tên phải từ 3-200 ký tự"),
		),
		validation.Field(&r.Description,
			validation.When(r.Description != nil,
				validation.Length(0, 1000).Error("Mô tả không được vượt quá 1000 ký tự"),
			),
		),
		validation.Field(&r.DiscountType,
			validation.Required.Error("Loại giảm giá bắt buộc"),
			validation.In(string(DiscountTypePercentage), string(DiscountTypeFixedAmount)).
				Error("Loại giảm giá phải là 'PERCENTAGE' hoặc 'FIXED_AMOUNT'"),
		),
		validation.Field(&r.DiscountValue,
			validation.Min(0.0).Error("Giá trị giảm giá phải >= 0"),
			validation.By(r.validateDiscountValue),
		),
		validation.Field(&r.MaxDiscount,
			validation.When(r.MaxDiscount != nil,
				validation.Min(0.01).Error("Giá trị giảm tối đa phải > 0"),
			),
		),
		validation.Field(&r.MinSpend,
			validation.Min(0.0).Error("Giá trị đơn hàng tối thiểu phải >= 0"),
		),
		validation.Field(&r.UsageLimit,
			validation.When(r.UsageLimit != nil,
				validation.Min(1).Error("Số lượt sử dụng tối đa phải >= 1"),
			),
		),
		validation.Field(&r.UsageLimitPerUser,
			validation.Min(1).Error("Số lượt sử dụng/user phải >= 1"),
		),
		validation.Field(&r.StartDate,
			validation.Required.Error("Thời gian bắt đầu bắt buộc"),
			validation.Date(time.RFC3339).Error("Định dạng thời gian không hợp lệ (RFC3339)"),
		),
		validation.Field(&r.EndDate,
			validation.Required.Error("Thời gian kết thúc bắt buộc"),
			validation.Date(time.RFC3339).Error("Định dạng thời gian không hợp lệ (RFC3339)"),
			validation.By(r.validateDateRange),
		),
	)
}

// validateDiscountValue rejects percentage values above 100
func (r CreateVoucherRequest) validateDiscountValue(value interface{}) error {
	if r.DiscountType == string(DiscountTypePercentage) {
		if r.DiscountValue > 100 {
			return errors.New("giảm giá phần trăm không được vượt quá 100")
		}
	}
	return nil
}

// validateDateRange requires end_date strictly after start_date
func (r CreateVoucherRequest) validateDateRange(value interface{}) error {
	startDate, err := time.Parse(time.RFC3339, r.StartDate)
	if err != nil {
		return nil // format error already reported on the StartDate field
	}

	endDate, err := time.Parse(time.RFC3339, r.EndDate)
	if err != nil {
		return nil // format error already reported on the EndDate field
	}

	if !endDate.After(startDate) {
		return errors.New("thời gian kết thúc phải sau thời gian bắt đầu")
	}

	return nil
}

// NormalizeCode uppercases and trims the code.
func (r *CreateVoucherRequest) NormalizeCode() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

// UpdateVoucherRequest - partial update; nil fields are left unchanged
type UpdateVoucherRequest struct {
	Name                  *string          `json:"name"`
	Description           *string          `json:"description"`
	MaxDiscount           *decimal.Decimal `json:"max_discount"`
	MinSpend              *decimal.Decimal `json:"min_spend"`
	UsageLimit            *int             `json:"usage_limit"`
	UsageLimitPerUser     *int             `json:"usage_limit_per_user"`
	StartDate             *string          `json:"start_date"`
	EndDate               *string          `json:"end_date"`
	Status                *string          `json:"status"`
	ApplicableCategoryIDs []uuid.UUID      `json:"applicable_category_ids"`
	ApplicableProductIDs  []uuid.UUID      `json:"applicable_product_ids"`
	FirstOrderOnly        *bool            `json:"first_order_only"`
}

// Validate validates UpdateVoucherRequest
func (r UpdateVoucherRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.When(r.Name != nil,
				validation.Length(3, 200).Error("Tên phải từ 3-200 ký tự"),
			),
		),
		validation.Field(&r.UsageLimitPerUser,
			validation.When(r.UsageLimitPerUser != nil,
				validation.Min(1).Error("Số lượt sử dụng/user phải >= 1"),
			),
		),
		validation.Field(&r.Status,
			validation.When(r.Status != nil,
				validation.In(
					string(VoucherStatusActive),
					string(VoucherStatusInactive),
					string(VoucherStatusExpired),
					string(VoucherStatusUsedUp),
				).Error("Trạng thái không hợp lệ"),
			),
		),
		validation.Field(&r.StartDate,
			validation.When(r.StartDate != nil,
				validation.Date(time.RFC3339).Error("Định dạng thời gian không hợp lệ (RFC3339)"),
			),
		),
		validation.Field(&r.EndDate,
			validation.When(r.EndDate != nil,
				validation.Date(time.RFC3339).Error("Định dạng thời gian không hợp lệ (RFC3339)"),
			),
		),
	)
}

// ListVouchersFilter - filter for the admin listing
type ListVouchersFilter struct {
	Status       string `form:"status"`        // ACTIVE, INACTIVE, EXPIRED, USED_UP, all
	DiscountType string `form:"discount_type"` // PERCENTAGE, FIXED_AMOUNT
	Search       string `form:"search"`        // match against code/name
	Sort         string `form:"sort"`          // created_at_desc, end_date_asc, usage_desc
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
}

// Validate normalizes pagination and validates the filter values
func (f *ListVouchersFilter) Validate() error {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Status == "" {
		f.Status = "all"
	}
	return validation.ValidateStruct(f,
		validation.Field(&f.Status, validation.In(
			"all",
			string(VoucherStatusActive),
			string(VoucherStatusInactive),
			string(VoucherStatusExpired),
			string(VoucherStatusUsedUp),
		)),
		validation.Field(&f.DiscountType, validation.In(
			"",
			string(DiscountTypePercentage),
			string(DiscountTypeFixedAmount),
		)),
		validation.Field(&f.Sort, validation.In(
			"", "created_at_desc", "end_date_asc", "usage_desc", "name_asc",
		)),
	)
}

// GenerateCodeRequest - admin request to generate a fresh voucher code
type GenerateCodeRequest struct {
	Length int    `json:"length"`
	Prefix string `json:"prefix"`
}

// Validate validates GenerateCodeRequest
func (r GenerateCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Length,
			validation.Min(4).Error("Độ dài mã phải >= 4"),
			validation.Max(32).Error("Độ dài mã phải <= 32"),
		),
		validation.Field(&r.Prefix,
			validation.Length(0, 16).Error("Tiền tố không được vượt quá 16 ký tự"),
			validation.When(r.Prefix != "",
				validation.Match(regexp.MustCompile("^[A-Z0-9]+$")).Error("Tiền tố chỉ được chứa chữ hoa và số"),
			),
		),
	)
}

// -------------------------------------------------------------------
// RESPONSES
// -------------------------------------------------------------------

// ValidationResult is the outcome of validating or applying a voucher.
// Exactly one variant is populated: the Valid fields (discount, totals,
// voucher info) or the Invalid fields (error code, message). Callers
// must branch on Valid before reading discount fields.
type ValidationResult struct {
	Valid        bool       `json:"valid"`
	ErrorCode    *ErrorCode `json:"errorCode"`
	ErrorMessage *string    `json:"errorMessage"`

	DiscountAmount *decimal.Decimal `json:"discountAmount"`
	OrderTotal     *decimal.Decimal `json:"orderTotal"`
	FinalTotal     *decimal.Decimal `json:"finalTotal"`
	VoucherInfo    *VoucherInfo     `json:"voucherInfo"`

	// Extra context for specific rejections (e.g. min_spend)
	MinSpend *decimal.Decimal `json:"minSpend,omitempty"`

	// Set only by the commit step on success
	Applied bool `json:"applied,omitempty"`
}

// VoucherInfo is the voucher summary embedded in a valid result.
type VoucherInfo struct {
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	DiscountType  DiscountType     `json:"discountType"`
	DiscountValue decimal.Decimal  `json:"discountValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount"`
	MinSpend      decimal.Decimal  `json:"minSpend"`
	ExpiresAt     time.Time        `json:"expiresAt"`
}

// NewInvalidResult builds the rejection variant.
func NewInvalidResult(code ErrorCode) *ValidationResult {
	msg := code.Message()
	return &ValidationResult{
		Valid:        false,
		ErrorCode:    &code,
		ErrorMessage: &msg,
	}
}

// NewValidResult builds the success variant; finalTotal is derived,
// never supplied.
func NewValidResult(v *Voucher, discount, orderTotal decimal.Decimal) *ValidationResult {
	finalTotal := orderTotal.Sub(discount)
	return &ValidationResult{
		Valid:          true,
		DiscountAmount: &discount,
		OrderTotal:     &orderTotal,
		FinalTotal:     &finalTotal,
		VoucherInfo: &VoucherInfo{
			Code:          v.Code,
			Name:          v.Name,
			DiscountType:  v.DiscountType,
			DiscountValue: v.DiscountValue,
			MaxDiscount:   v.MaxDiscount,
			MinSpend:      v.MinSpend,
			ExpiresAt:     v.EndDate,
		},
	}
}

// VoucherResponse is the public voucher view with derived fields.
type VoucherResponse struct {
	ID                    uuid.UUID        `json:"id"`
	Code                  string           `json:"code"`
	Name                  string           `json:"name"`
	Description           *string          `json:"description,omitempty"`
	DiscountType          DiscountType     `json:"discount_type"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MaxDiscount           *decimal.Decimal `json:"max_discount,omitempty"`
	MinSpend              decimal.Decimal  `json:"min_spend"`
	UsageLimit            *int             `json:"usage_limit,omitempty"`
	UsageLimitPerUser     int              `json:"usage_limit_per_user"`
	UsageCount            int              `json:"usage_count"`
	RemainingUses         *int             `json:"remaining_uses"`
	StartDate             time.Time        `json:"start_date"`
	EndDate               time.Time        `json:"end_date"`
	Status                VoucherStatus    `json:"status"`
	ApplicableCategoryIDs []uuid.UUID      `json:"applicable_category_ids,omitempty"`
	ApplicableProductIDs  []uuid.UUID      `json:"applicable_product_ids,omitempty"`
	FirstOrderOnly        bool             `json:"first_order_only"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// NewVoucherResponse maps an entity to its public view.
func NewVoucherResponse(v *Voucher) *VoucherResponse {
	return &VoucherResponse{
		ID:                    v.ID,
		Code:                  v.Code,
		Name:                  v.Name,
		Description:           v.Description,
		DiscountType:          v.DiscountType,
		DiscountValue:         v.DiscountValue,
		MaxDiscount:           v.MaxDiscount,
		MinSpend:              v.MinSpend,
		UsageLimit:            v.UsageLimit,
		UsageLimitPerUser:     v.UsageLimitPerUser,
		UsageCount:            v.UsageCount,
		RemainingUses:         v.RemainingUses(),
		StartDate:             v.StartDate,
		EndDate:               v.EndDate,
		Status:                v.Status,
		ApplicableCategoryIDs: v.ApplicableCategoryIDs,
		ApplicableProductIDs:  v.ApplicableProductIDs,
		FirstOrderOnly:        v.FirstOrderOnly,
		CreatedAt:             v.CreatedAt,
		UpdatedAt:             v.UpdatedAt,
	}
}

// UserVoucherResponse embeds the voucher summary and a computed can_use
// flag for the "my vouchers" listing.
type UserVoucherResponse struct {
	ID             uuid.UUID         `json:"id"`
	VoucherID      uuid.UUID         `json:"voucher_id"`
	Status         UserVoucherStatus `json:"status"`
	TimesUsed      int               `json:"times_used"`
	UsedAt         *time.Time        `json:"used_at,omitempty"`
	DiscountAmount *decimal.Decimal  `json:"discount_amount,omitempty"`
	OrderID        *uuid.UUID        `json:"order_id,omitempty"`
	ClaimedAt      time.Time         `json:"claimed_at"`
	CanUse         bool              `json:"can_use"`
	Voucher        *VoucherResponse  `json:"voucher,omitempty"`
}

// NewUserVoucherResponse maps a ledger row (with its voucher) to the
// response shape.
func NewUserVoucherResponse(uv *UserVoucher, v *Voucher, now time.Time) *UserVoucherResponse {
	resp := &UserVoucherResponse{
		ID:             uv.ID,
		VoucherID:      uv.VoucherID,
		Status:         uv.Status,
		TimesUsed:      uv.TimesUsed,
		UsedAt:         uv.UsedAt,
		DiscountAmount: uv.DiscountAmount,
		OrderID:        uv.OrderID,
		ClaimedAt:      uv.ClaimedAt,
	}
	if v != nil {
		resp.CanUse = uv.CanUse(v, now)
		resp.Voucher = NewVoucherResponse(v)
	}
	return resp
}

// CheckVoucherResponse - quick existence/validity probe
type CheckVoucherResponse struct {
	Exists  bool             `json:"exists"`
	Valid   bool             `json:"valid"`
	Voucher *VoucherResponse `json:"voucher"`
	Reason  string           `json:"reason,omitempty"` // not_found, expired, inactive, used_up
}

// GenerateCodeResponse - generated admin code
type GenerateCodeResponse struct {
	Code string `json:"code"`
}

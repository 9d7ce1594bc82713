package model

import "errors"

// Sentinel errors for the repository layer
var (
	ErrVoucherNotFound     = errors.New("voucher not found")
	ErrUserVoucherNotFound = errors.New("user voucher not found")
	ErrDuplicateCode       = errors.New("voucher code already exists")
	ErrDuplicateClaim      = errors.New("voucher already claimed by user")
	ErrVoucherUsedUp       = errors.New("voucher usage limit reached")
	ErrUserLimitReached    = errors.New("user has exhausted uses for this voucher")
)

// ErrorCode is the machine-readable rejection reason carried by every
// invalid validation result and claim conflict.
type ErrorCode string

const (
	// Validation rejections (400)
	ErrCodeInvalidCode           ErrorCode = "INVALID_CODE"
	ErrCodeVoucherExpired        ErrorCode = "VOUCHER_EXPIRED"
	ErrCodeVoucherNotStarted     ErrorCode = "VOUCHER_NOT_STARTED"
	ErrCodeVoucherInactive       ErrorCode = "VOUCHER_INACTIVE"
	ErrCodeVoucherUsedUp         ErrorCode = "VOUCHER_USED_UP"
	ErrCodeMinSpendNotMet        ErrorCode = "MIN_SPEND_NOT_MET"
	ErrCodeUserLimitReached      ErrorCode = "USER_LIMIT_REACHED"
	ErrCodeFirstOrderOnly        ErrorCode = "FIRST_ORDER_ONLY"
	ErrCodeCategoryNotApplicable ErrorCode = "CATEGORY_NOT_APPLICABLE"
	ErrCodeProductNotApplicable  ErrorCode = "PRODUCT_NOT_APPLICABLE"

	// Claim flow (404 / 409)
	ErrCodeVoucherNotFound ErrorCode = "VOUCHER_NOT_FOUND"
	ErrCodeAlreadyClaimed  ErrorCode = "ALREADY_CLAIMED"

	// Admin operation errors
	ErrCodeDuplicateCode ErrorCode = "VAL_DUPLICATE_CODE" // 400

	// Validation errors (400)
	ErrCodeValidationFailed ErrorCode = "VAL_INVALID_INPUT" // 400

	// System errors (500)
	ErrCodeInternalError ErrorCode = "SYS_INTERNAL_ERROR" // 500
)

// ErrorMessages maps every rejection reason to a ready-to-display
// message so the boundary layer needs no domain knowledge.
var ErrorMessages = map[ErrorCode]string{
	ErrCodeInvalidCode:           "Mã voucher không hợp lệ",
	ErrCodeVoucherExpired:        "Mã voucher đã hết hạn",
	ErrCodeVoucherNotStarted:     "Mã voucher chưa có hiệu lực",
	ErrCodeVoucherInactive:       "Mã voucher không còn hiệu lực",
	ErrCodeVoucherUsedUp:         "Mã voucher đã hết lượt sử dụng",
	ErrCodeMinSpendNotMet:        "Đơn hàng chưa đạt giá trị tối thiểu",
	ErrCodeUserLimitReached:      "Bạn đã sử dụng hết lượt cho mã voucher này",
	ErrCodeFirstOrderOnly:        "Mã voucher chỉ áp dụng cho đơn hàng đầu tiên",
	ErrCodeCategoryNotApplicable: "Mã voucher không áp dụng cho danh mục này",
	ErrCodeProductNotApplicable:  "Mã voucher không áp dụng cho sản phẩm này",
	ErrCodeVoucherNotFound:       "Mã voucher không tồn tại",
	ErrCodeAlreadyClaimed:        "Bạn đã lưu mã voucher này rồi",
}

// Message returns the display message for a code, with a generic
// fallback for unknown codes.
func (c ErrorCode) Message() string {
	if msg, ok := ErrorMessages[c]; ok {
		return msg
	}
	return "Lỗi không xác định"
}

type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Predefined errors
var (
	ErrVoucherNotFoundApp = &AppError{
		Code:       ErrCodeVoucherNotFound,
		Message:    ErrorMessages[ErrCodeVoucherNotFound],
		HTTPStatus: 404,
	}

	ErrDuplicateCodeApp = &AppError{
		Code:       ErrCodeDuplicateCode,
		Message:    "Mã voucher đã tồn tại",
		HTTPStatus: 400,
	}
)

// NewAlreadyClaimedError builds the 409 conflict for the claim flow,
// carrying the existing row so the client can display it.
func NewAlreadyClaimedError(existing *UserVoucher) *AppError {
	return &AppError{
		Code:    ErrCodeAlreadyClaimed,
		Message: ErrorMessages[ErrCodeAlreadyClaimed],
		Details: map[string]interface{}{
			"user_voucher": existing,
		},
		HTTPStatus: 409,
	}
}

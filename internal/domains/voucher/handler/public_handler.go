package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pharmacy-backend/internal/domains/voucher/model"
	"pharmacy-backend/internal/domains/voucher/service"
	"pharmacy-backend/internal/shared/middleware"
	"pharmacy-backend/internal/shared/response"
	"pharmacy-backend/pkg/logger"
)

// PublicHandler xử lý các API công khai (user-facing)
type PublicHandler struct {
	service service.ServiceInterface
}

// NewPublicHandler tạo handler instance
func NewPublicHandler(voucherService service.ServiceInterface) *PublicHandler {
	return &PublicHandler{
		service: voucherService,
	}
}

// -------------------------------------------------------------------
// VALIDATE & APPLY
// -------------------------------------------------------------------

// ApplyVoucher validates the code against the order and commits the
// usage atomically.
//
// @Summary      Apply voucher
// @Description  Kiểm tra và áp dụng mã giảm giá vào đơn hàng
// @Tags         vouchers
// @Accept       json
// @Produce      json
// @Param        request body model.ApplyVoucherRequest true "Apply request"
// @Success      200 {object} response.Response{data=model.ValidationResult}
// @Failure      400 {object} response.Response
// @Router       /v1/vouchers/apply [post]
func (h *PublicHandler) ApplyVoucher(c *gin.Context) {
	req, ok := h.bindApplyRequest(c)
	if !ok {
		return
	}

	result, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	// Business rejections travel inside the result with HTTP 200; the
	// client branches on result.valid.
	response.Success(c, http.StatusOK, result)
}

// CalculateDiscount runs the same pipeline as apply without writing
// anything. Used for live cart previews.
//
// @Summary      Calculate discount
// @Description  Tính thử số tiền giảm, không ghi nhận lượt sử dụng
// @Router       /v1/vouchers/calculate [post]
func (h *PublicHandler) CalculateDiscount(c *gin.Context) {
	req, ok := h.bindApplyRequest(c)
	if !ok {
		return
	}

	result, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// bindApplyRequest binds, validates and attaches the caller identity
// for the apply/calculate endpoints.
func (h *PublicHandler) bindApplyRequest(c *gin.Context) (*model.ApplyVoucherRequest, bool) {
	var req model.ApplyVoucherRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu request không hợp lệ", err.Error())
		return nil, false
	}

	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err.Error())
		return nil, false
	}

	// Identity comes from the JWT only; an anonymous caller gets the
	// guest-checkout path (no per-user checks, no ledger row).
	if userID, ok := middleware.GetUserID(c); ok {
		req.UserID = &userID
	}

	return &req, true
}

// -------------------------------------------------------------------
// CLAIM
// -------------------------------------------------------------------

// ClaimVoucher saves a voucher to the authenticated user's account.
//
// @Summary      Claim voucher
// @Description  Lưu mã giảm giá vào tài khoản để dùng sau
// @Router       /v1/vouchers/claim [post]
func (h *PublicHandler) ClaimVoucher(c *gin.Context) {
	var req model.ClaimVoucherRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu request không hợp lệ", err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err.Error())
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Vui lòng đăng nhập")
		return
	}

	userVoucher, err := h.service.Claim(c.Request.Context(), req.Code, userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, userVoucher)
}

// -------------------------------------------------------------------
// READS
// -------------------------------------------------------------------

// CheckVoucher is the lightweight probe behind the code input field.
//
// @Summary      Check voucher code
// @Router       /v1/vouchers/check [get]
func (h *PublicHandler) CheckVoucher(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, "Mã voucher không được để trống")
		return
	}

	result, err := h.service.Check(c.Request.Context(), code)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListAvailableVouchers returns the active vouchers for the storefront.
//
// @Summary      List available vouchers
// @Router       /v1/vouchers [get]
func (h *PublicHandler) ListAvailableVouchers(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)

	vouchers, total, err := h.service.ListAvailable(c.Request.Context(), page, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, vouchers, &response.Meta{
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GetVoucherByCode returns the public detail of an active voucher.
//
// @Summary      Get voucher detail
// @Router       /v1/vouchers/:code [get]
func (h *PublicHandler) GetVoucherByCode(c *gin.Context) {
	code := c.Param("code")

	voucher, err := h.service.GetByCode(c.Request.Context(), code)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, voucher)
}

// ListMyVouchers returns the authenticated user's claimed vouchers.
//
// @Summary      List my vouchers
// @Router       /v1/vouchers/my [get]
func (h *PublicHandler) ListMyVouchers(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Vui lòng đăng nhập")
		return
	}

	vouchers, err := h.service.ListUserVouchers(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, vouchers)
}

// -------------------------------------------------------------------
// HELPER FUNCTIONS
// -------------------------------------------------------------------

// handleError translates AppError into its HTTP status; anything else
// is an infrastructure failure and becomes a plain 500.
func (h *PublicHandler) handleError(c *gin.Context, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		response.ErrorWithDetails(c, appErr.HTTPStatus, string(appErr.Code), appErr.Message, appErr.Details)
		return
	}

	logger.Error("voucher request failed", err)
	response.InternalServerError(c, "Đã có lỗi xảy ra, vui lòng thử lại sau")
}

// parseIntQuery parse integer query param với default value
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

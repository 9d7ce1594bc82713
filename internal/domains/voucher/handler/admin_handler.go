package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pharmacy-backend/internal/domains/voucher/model"
	"pharmacy-backend/internal/domains/voucher/service"
	"pharmacy-backend/internal/shared/response"
	"pharmacy-backend/pkg/logger"
)

// AdminHandler xử lý các API quản trị (admin-only)
type AdminHandler struct {
	service service.ServiceInterface
}

// NewAdminHandler tạo handler instance
func NewAdminHandler(voucherService service.ServiceInterface) *AdminHandler {
	return &AdminHandler{
		service: voucherService,
	}
}

// -------------------------------------------------------------------
// CREATE & UPDATE
// -------------------------------------------------------------------

// CreateVoucher tạo voucher mới
// @Description  Tạo mã giảm giá mới (Admin only)
// @Router       /v1/admin/vouchers [post]
func (h *AdminHandler) CreateVoucher(c *gin.Context) {
	var req model.CreateVoucherRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu request không hợp lệ", err.Error())
		return
	}

	req.NormalizeCode()

	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err.Error())
		return
	}

	voucher, err := h.service.CreateVoucher(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, voucher)
}

// UpdateVoucher cập nhật voucher
// @Description  Cập nhật thông tin voucher (Admin only). Code và counters
// không được thay đổi qua endpoint này.
// @Router       /v1/admin/vouchers/:id [put]
func (h *AdminHandler) UpdateVoucher(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Voucher ID không hợp lệ")
		return
	}

	var req model.UpdateVoucherRequest

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

	voucher, err := h.service.UpdateVoucher(c.Request.Context(), id, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, voucher)
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

// GetVoucher lấy chi tiết voucher
// @Description  Lấy thông tin chi tiết voucher (Admin only)
// @Router       /v1/admin/vouchers/:id [get]
func (h *AdminHandler) GetVoucher(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Voucher ID không hợp lệ")
		return
	}

	voucher, err := h.service.GetVoucher(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, voucher)
}

// ListVouchers lấy danh sách vouchers với filter
// @Description  Lấy danh sách tất cả vouchers với filter (Admin only)
// @Router       /v1/admin/vouchers [get]
func (h *AdminHandler) ListVouchers(c *gin.Context) {
	var filter model.ListVouchersFilter

	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Query parameters không hợp lệ", err.Error())
		return
	}

	if err := filter.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Query parameters không hợp lệ", err.Error())
		return
	}

	vouchers, total, err := h.service.ListVouchers(c.Request.Context(), &filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, vouchers, &response.Meta{
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	})
}

// -------------------------------------------------------------------
// STATUS & CODE GENERATION
// -------------------------------------------------------------------

// DeactivateVoucher vô hiệu hóa voucher; lịch sử sử dụng được giữ nguyên.
// @Description  Vô hiệu hóa voucher (Admin only)
// @Router       /v1/admin/vouchers/:id [delete]
func (h *AdminHandler) DeactivateVoucher(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Voucher ID không hợp lệ")
		return
	}

	if err := h.service.DeactivateVoucher(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":     id,
		"status": model.VoucherStatusInactive,
	})
}

// GenerateCode sinh mã voucher ngẫu nhiên chưa tồn tại.
// @Description  Sinh mã voucher mới (Admin only)
// @Router       /v1/admin/vouchers/generate-code [post]
func (h *AdminHandler) GenerateCode(c *gin.Context) {
	// Body is optional; an empty body uses the configured defaults.
	req := model.GenerateCodeRequest{Length: 8}

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest,
				string(model.ErrCodeValidationFailed), "Dữ liệu request không hợp lệ", err.Error())
			return
		}
	}

	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest,
			string(model.ErrCodeValidationFailed), "Dữ liệu không hợp lệ", err.Error())
		return
	}

	code, err := h.service.GenerateCode(c.Request.Context(), req.Length, req.Prefix)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.GenerateCodeResponse{Code: code})
}

// -------------------------------------------------------------------
// HELPER FUNCTIONS
// -------------------------------------------------------------------

// handleError giống PublicHandler
func (h *AdminHandler) handleError(c *gin.Context, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		response.ErrorWithDetails(c, appErr.HTTPStatus, string(appErr.Code), appErr.Message, appErr.Details)
		return
	}

	logger.Error("admin voucher request failed", err)
	response.InternalServerError(c, "Internal server error")
}

package fraud

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/internal/riskconfig"
	"github.com/richxcame/order-risk/pkg/common"
	"github.com/richxcame/order-risk/pkg/logger"
	"github.com/richxcame/order-risk/pkg/middleware"
	"github.com/richxcame/order-risk/pkg/pagination"
	"github.com/richxcame/order-risk/pkg/validation"
	"go.uber.org/zap"
)

// ScreeningService is what the handler needs from the service.
type ScreeningService interface {
	ScreenOrder(ctx context.Context, req *ScreenRequest) (*Assessment, error)
	GetAssessment(ctx context.Context, orderID string) (*Assessment, error)
	ListCustomerAssessments(ctx context.Context, customerID string, limit, offset int) ([]*Assessment, int, error)
	CurrentConfig() risk.Config
	UpdateConfig(ctx context.Context, patch risk.ConfigPatch) (risk.Config, error)
	ApplyProfile(ctx context.Context, name string) (risk.Config, error)
}

var _ ScreeningService = (*Service)(nil)

// Handler handles HTTP requests for order screening
type Handler struct {
	service ScreeningService
}

// NewHandler creates a new fraud handler
func NewHandler(service ScreeningService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers fraud routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1/fraud")
	{
		api.POST("/screen", h.ScreenOrder)
		api.GET("/assessments/:order_id", h.GetAssessment)
		api.GET("/customers/:customer_id/assessments", h.ListCustomerAssessments)
	}

	cfg := api.Group("/config")
	{
		cfg.GET("", h.GetConfig)
		cfg.PATCH("", h.UpdateConfig)
		cfg.POST("/profiles/:name", h.ApplyProfile)
	}
}

// ScreenOrder handles screening one order
func (h *Handler) ScreenOrder(c *gin.Context) {
	var req ScreenRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	assessment, err := h.service.ScreenOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err, "failed to screen order")
		return
	}

	common.SuccessResponse(c, assessment)
}

// GetAssessment handles fetching the latest assessment of an order
func (h *Handler) GetAssessment(c *gin.Context) {
	orderID := c.Param("order_id")
	if orderID == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "order ID is required")
		return
	}

	assessment, err := h.service.GetAssessment(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err, "failed to get assessment")
		return
	}

	common.SuccessResponse(c, assessment)
}

// ListCustomerAssessments handles paging through a customer's assessments
func (h *Handler) ListCustomerAssessments(c *gin.Context) {
	customerID := c.Param("customer_id")
	if customerID == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "customer ID is required")
		return
	}

	params := pagination.ParseParams(c)

	assessments, total, err := h.service.ListCustomerAssessments(c.Request.Context(), customerID, params.Limit, params.Offset)
	if err != nil {
		h.respondError(c, err, "failed to list assessments")
		return
	}

	common.SuccessResponseWithMeta(c, assessments, pagination.BuildMeta(params.Limit, params.Offset, int64(total)))
}

// GetConfig handles reading the active risk configuration
func (h *Handler) GetConfig(c *gin.Context) {
	common.SuccessResponse(c, h.service.CurrentConfig())
}

// UpdateConfig handles patching the active risk configuration
func (h *Handler) UpdateConfig(c *gin.Context) {
	var patch risk.ConfigPatch
	if !middleware.BindJSON(c, &patch) {
		return
	}

	cfg, err := h.service.UpdateConfig(c.Request.Context(), patch)
	if err != nil {
		h.respondError(c, err, "failed to update risk config")
		return
	}

	common.SuccessResponse(c, cfg)
}

// ApplyProfile handles switching to a named risk profile
func (h *Handler) ApplyProfile(c *gin.Context) {
	cfg, err := h.service.ApplyProfile(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err, "failed to apply risk profile")
		return
	}

	common.SuccessResponse(c, cfg)
}

func (h *Handler) respondError(c *gin.Context, err error, message string) {
	var appErr *common.AppError
	var verr *validation.ValidationError

	switch {
	case errors.As(err, &appErr):
		common.AppErrorResponse(c, appErr)
	case errors.As(err, &verr):
		common.AppErrorResponse(c, common.NewValidationError(verr.Errors, err))
	case errors.Is(err, risk.ErrInvalidConfig):
		common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
	case errors.Is(err, ErrAssessmentNotFound):
		common.AppErrorResponse(c, common.NewNotFoundError("assessment not found", err))
	case errors.Is(err, riskconfig.ErrUnknownProfile):
		common.AppErrorResponse(c, common.NewNotFoundError(err.Error(), err))
	default:
		logger.WithContext(c.Request.Context()).Error(message, zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, message)
	}
}

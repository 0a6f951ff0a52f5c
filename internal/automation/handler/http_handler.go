// Package handler exposes the automation engine over HTTP: the manual batch
// trigger, the delivery log listing, resend, and the rule listing.
package handler

import (
	"fmt"
	"net/http"

	"dizimo_backend/internal/automation/repository"
	"dizimo_backend/internal/automation/service"
	"dizimo_backend/internal/automation/transport"
	"dizimo_backend/platform/httpkit"
	"dizimo_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid log entry id"
)

// HTTPHandler handles the admin-facing automation endpoints.
type HTTPHandler struct {
	svc *service.Service
	val *validator.Validator
}

func NewHTTPHandler(svc *service.Service, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{svc: svc, val: val}
}

func (h *HTTPHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.POST("/automations/run", h.RunBatch)
	admin.GET("/notification-logs", h.ListLogs)
	admin.POST("/notification-logs/:id/resend", h.Resend)
	admin.GET("/notification-rules", h.ListRules)
}

// RunBatch triggers the daily sweep synchronously and returns its summary.
// POST /api/v1/admin/automations/run
func (h *HTTPHandler) RunBatch(c *gin.Context) {
	summary, err := h.svc.RunBatch(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// ListLogs retrieves a filtered page of the delivery log.
// GET /api/v1/admin/notification-logs
func (h *HTTPHandler) ListLogs(c *gin.Context) {
	var req transport.ListLogsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	filter := req.ToFilter()
	items, total, err := h.svc.ListLogs(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ListLogsResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Resend re-dispatches the stored content of one log entry.
// POST /api/v1/admin/notification-logs/:id/resend
func (h *HTTPHandler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.Resend(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.ResendResponse{Success: result.Status == repository.LogStatusSent}
	if resp.Success {
		resp.Message = "notification resent"
	} else {
		resp.Message = fmt.Sprintf("resend failed: %s", result.ErrorMessage)
	}
	httpkit.OK(c, resp)
}

// ListRules retrieves all rules read-only for the operator dashboard.
// GET /api/v1/admin/notification-rules
func (h *HTTPHandler) ListRules(c *gin.Context) {
	rules, err := h.svc.ListRules(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ListRulesResponse{Items: rules})
}

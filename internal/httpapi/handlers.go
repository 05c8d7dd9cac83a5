package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/internal/usecase"
)

// AutomationHandler serves the automation and alerting endpoints.
type AutomationHandler struct {
	service *usecase.AutomationService
	logger  *zap.Logger
}

// NewAutomationHandler creates a handler around the automation service.
func NewAutomationHandler(service *usecase.AutomationService, logger *zap.Logger) *AutomationHandler {
	return &AutomationHandler{service: service, logger: logger}
}

// requestCtx returns the request context, letting a workspace_id in the body
// override the one the middleware resolved.
func requestCtx(c *gin.Context, bodyWorkspaceID string) context.Context {
	ctx := c.Request.Context()
	if bodyWorkspaceID != "" {
		ctx = tenant.WithWorkspaceID(ctx, bodyWorkspaceID)
	}
	return ctx
}

// contextWorkspaceID resolves the workspace the middleware stamped on the
// request, for payloads that omit workspace_id in the body.
func contextWorkspaceID(c *gin.Context) string {
	workspaceID, err := tenant.FromContext(c.Request.Context())
	if err != nil {
		return ""
	}
	return workspaceID
}

// respondError maps application errors onto HTTP statuses. Internal failures
// surface as a generic automation failure.
func (h *AutomationHandler) respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidationError(err) || apperrors.IsBadRequestError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsDuplicateError(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Automation failed"})
	}
}

type checkAlertsRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// CheckAlerts handles POST /api/automations/check-alerts
func (h *AutomationHandler) CheckAlerts(c *gin.Context) {
	var req checkAlertsRequest
	// Body is optional; the middleware already resolved a workspace.
	_ = c.ShouldBindJSON(&req)

	created, err := h.service.Scan(requestCtx(c, req.WorkspaceID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "created": created})
}

// BookingCreated handles POST /api/automations/booking-created
func (h *AutomationHandler) BookingCreated(c *gin.Context) {
	var payload model.BookingCreatedPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.WorkspaceID == "" {
		payload.WorkspaceID = contextWorkspaceID(c)
	}

	conversationID, err := h.service.OnBookingCreated(requestCtx(c, payload.WorkspaceID), payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conversation_id": conversationID})
}

// ContactCreated handles POST /api/automations/contact-created
func (h *AutomationHandler) ContactCreated(c *gin.Context) {
	var payload model.ContactCreatedPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.WorkspaceID == "" {
		payload.WorkspaceID = contextWorkspaceID(c)
	}

	conversationID, err := h.service.OnContactCreated(requestCtx(c, payload.WorkspaceID), payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conversation_id": conversationID})
}

// ListAlerts handles GET /api/alerts?unresolved=1
func (h *AutomationHandler) ListAlerts(c *gin.Context) {
	// Only the unresolved view is exposed; resolved alerts are history.
	alerts, err := h.service.ListUnresolvedAlerts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// ResolveAlert handles POST /api/alerts/:id/resolve
func (h *AutomationHandler) ResolveAlert(c *gin.Context) {
	if err := h.service.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ResolveAllAlerts handles POST /api/alerts/resolve-all
func (h *AutomationHandler) ResolveAllAlerts(c *gin.Context) {
	if err := h.service.ResolveAll(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type createContactRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
}

// CreateContact handles POST /api/contacts: upsert-by-email intake followed
// by the contact-created automation.
func (h *AutomationHandler) CreateContact(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := model.Contact{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}
	saved, conversationID, err := h.service.IntakeContact(requestCtx(c, req.WorkspaceID), contact, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"contact": saved, "conversation_id": conversationID})
}

type createBookingRequest struct {
	WorkspaceID string `json:"workspace_id"`
	ContactID   string `json:"contact_id" binding:"required"`
	Service     string `json:"service"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Notes       string `json:"notes"`
}

// CreateBooking handles POST /api/bookings: the booking row commits first,
// then the booking-created automation fires best-effort.
func (h *AutomationHandler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking := model.Booking{
		ContactID: req.ContactID,
		Service:   req.Service,
		Date:      req.Date,
		Time:      req.Time,
		Notes:     req.Notes,
	}
	saved, err := h.service.IntakeBooking(requestCtx(c, req.WorkspaceID), booking)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": saved})
}

type staffReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

// StaffReply handles POST /api/conversations/:id/reply: appends the admin
// message, resets the unread count and pauses automation for the thread.
func (h *AutomationHandler) StaffReply(c *gin.Context) {
	var req staffReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.StaffReply(c.Request.Context(), c.Param("id"), req.Content); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

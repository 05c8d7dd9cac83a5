package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/config"
	"github.com/opsdeck/automation-engine/internal/model"
	storagemock "github.com/opsdeck/automation-engine/internal/storage/mock"
	"github.com/opsdeck/automation-engine/internal/usecase"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
}

type serverMocks struct {
	contactRepo      *storagemock.ContactRepoMock
	bookingRepo      *storagemock.BookingRepoMock
	conversationRepo *storagemock.ConversationRepoMock
	messageRepo      *storagemock.MessageRepoMock
	inventoryRepo    *storagemock.InventoryRepoMock
	formRepo         *storagemock.FormRepoMock
	alertRepo        *storagemock.AlertRepoMock
}

func newTestServer(t *testing.T) (*Server, *serverMocks) {
	m := &serverMocks{
		contactRepo:      new(storagemock.ContactRepoMock),
		bookingRepo:      new(storagemock.BookingRepoMock),
		conversationRepo: new(storagemock.ConversationRepoMock),
		messageRepo:      new(storagemock.MessageRepoMock),
		inventoryRepo:    new(storagemock.InventoryRepoMock),
		formRepo:         new(storagemock.FormRepoMock),
		alertRepo:        new(storagemock.AlertRepoMock),
	}
	service := usecase.NewAutomationService(
		m.contactRepo, m.bookingRepo, m.conversationRepo, m.messageRepo,
		m.inventoryRepo, m.formRepo, m.alertRepo,
		nil, zaptest.NewLogger(t),
	)

	cfg := &config.Config{}
	cfg.Workspace.ID = "ws-1"
	cfg.Server.Port = 8080

	return NewServer(cfg, service, zaptest.NewLogger(t)), m
}

func doRequest(server *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.engine.ServeHTTP(w, req)
	return w
}

func TestCheckAlerts_ReturnsCreatedEntries(t *testing.T) {
	server, m := newTestServer(t)

	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{
		{ID: "item-1", WorkspaceID: "ws-1", Name: "Gloves", Quantity: 2, MinQuantity: 5},
	}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	w := doRequest(server, http.MethodPost, "/api/automations/check-alerts", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		OK      bool     `json:"ok"`
		Created []string `json:"created"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, []string{"low_stock:Gloves"}, resp.Created)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCheckAlerts_AllScansFailed(t *testing.T) {
	server, m := newTestServer(t)

	m.inventoryRepo.On("FindAll", mock.Anything).Return(nil, apperrors.ErrDatabase)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return(nil, apperrors.ErrDatabase)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return(nil, apperrors.ErrDatabase)

	w := doRequest(server, http.MethodPost, "/api/automations/check-alerts", "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Automation failed")
}

func TestBookingCreated_ReturnsConversationID(t *testing.T) {
	server, m := newTestServer(t)

	existing := &model.Conversation{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1"}
	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(existing, nil)
	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, "conv-1", mock.Anything, int32(0)).Return(nil)
	m.contactRepo.On("FindByID", mock.Anything, "contact-1").
		Return(&model.Contact{ID: "contact-1", WorkspaceID: "ws-1", Name: "Sarah"}, nil)

	w := doRequest(server, http.MethodPost, "/api/automations/booking-created",
		`{"contact_id":"contact-1","contact_name":"Sarah","service":"Haircut","date":"2026-09-01","time":"10:00"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		OK             bool   `json:"ok"`
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "conv-1", resp.ConversationID)
}

func TestBookingCreated_MissingContactIDIsBadRequest(t *testing.T) {
	server, m := newTestServer(t)

	w := doRequest(server, http.MethodPost, "/api/automations/booking-created", `{"service":"Haircut"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	m.conversationRepo.AssertNotCalled(t, "FindByContactID", mock.Anything, mock.Anything)
}

func TestContactCreated_ReturnsConversationID(t *testing.T) {
	server, m := newTestServer(t)

	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(nil, apperrors.ErrNotFound)
	m.conversationRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := doRequest(server, http.MethodPost, "/api/automations/contact-created",
		`{"contact_id":"contact-1","contact_name":"Sarah","message":"Hi!"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		OK             bool   `json:"ok"`
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestListAlerts(t *testing.T) {
	server, m := newTestServer(t)

	m.alertRepo.On("FindUnresolved", mock.Anything).Return([]model.Alert{
		{ID: "alert-1", WorkspaceID: "ws-1", Type: model.AlertTypeLowStock, SubjectID: "item-1", Title: "Low stock: Gloves"},
	}, nil)

	w := doRequest(server, http.MethodGet, "/api/alerts", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Alerts []model.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "alert-1", resp.Alerts[0].ID)
}

func TestResolveAlert_NotFound(t *testing.T) {
	server, m := newTestServer(t)

	m.alertRepo.On("Resolve", mock.Anything, "alert-missing").Return(apperrors.ErrNotFound)

	w := doRequest(server, http.MethodPost, "/api/alerts/alert-missing/resolve", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveAllAlerts(t *testing.T) {
	server, m := newTestServer(t)

	m.alertRepo.On("ResolveAll", mock.Anything).Return(nil)

	w := doRequest(server, http.MethodPost, "/api/alerts/resolve-all", "")

	assert.Equal(t, http.StatusOK, w.Code)
	m.alertRepo.AssertCalled(t, "ResolveAll", mock.Anything)
}

func TestCreateContact_Created(t *testing.T) {
	server, m := newTestServer(t)

	saved := &model.Contact{ID: "contact-1", WorkspaceID: "ws-1", Name: "Sarah", Email: "sarah@example.com"}
	m.contactRepo.On("UpsertByEmail", mock.Anything, mock.AnythingOfType("model.Contact")).Return(saved, nil)
	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(nil, apperrors.ErrNotFound)
	m.conversationRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)
	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := doRequest(server, http.MethodPost, "/api/contacts",
		`{"name":"Sarah","email":"sarah@example.com","message":"Hi!"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Contact        model.Contact `json:"contact"`
		ConversationID string        `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "contact-1", resp.Contact.ID)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestCreateContact_MissingEmailIsBadRequest(t *testing.T) {
	server, m := newTestServer(t)

	w := doRequest(server, http.MethodPost, "/api/contacts", `{"name":"Sarah"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	m.contactRepo.AssertNotCalled(t, "UpsertByEmail", mock.Anything, mock.Anything)
}

func TestCreateBooking_Created(t *testing.T) {
	server, m := newTestServer(t)

	m.bookingRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Booking")).Return(nil)
	m.contactRepo.On("FindByID", mock.Anything, "contact-1").
		Return(&model.Contact{ID: "contact-1", WorkspaceID: "ws-1", Name: "Sarah"}, nil)
	existing := &model.Conversation{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1"}
	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(existing, nil)
	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := doRequest(server, http.MethodPost, "/api/bookings",
		`{"contact_id":"contact-1","service":"Haircut","date":"2026-09-01","time":"10:00"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Booking model.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Booking.ID)
	assert.Equal(t, "ws-1", resp.Booking.WorkspaceID)
	assert.Equal(t, model.BookingStatusConfirmed, resp.Booking.Status)
}

func TestStaffReply_OK(t *testing.T) {
	server, m := newTestServer(t)

	conversation := &model.Conversation{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1"}
	m.conversationRepo.On("FindByID", mock.Anything, "conv-1").Return(conversation, nil)
	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, "conv-1", "On our way!", int32(0)).Return(nil)
	m.conversationRepo.On("SetAutomationPaused", mock.Anything, "conv-1", true).Return(nil)

	w := doRequest(server, http.MethodPost, "/api/conversations/conv-1/reply", `{"content":"On our way!"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	m.conversationRepo.AssertCalled(t, "SetAutomationPaused", mock.Anything, "conv-1", true)
}

func TestStaffReply_MissingContentIsBadRequest(t *testing.T) {
	server, m := newTestServer(t)

	w := doRequest(server, http.MethodPost, "/api/conversations/conv-1/reply", `{}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	m.conversationRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestWorkspaceHeaderOverride(t *testing.T) {
	server, m := newTestServer(t)

	m.alertRepo.On("FindUnresolved", mock.Anything).Return([]model.Alert{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	req.Header.Set("X-Workspace-ID", "ws-override")
	w := httptest.NewRecorder()
	server.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	storagemock "github.com/opsdeck/automation-engine/internal/storage/mock"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zap.NewNop()
}

// serviceMocks bundles the repository mocks behind a service instance.
type serviceMocks struct {
	contactRepo      *storagemock.ContactRepoMock
	bookingRepo      *storagemock.BookingRepoMock
	conversationRepo *storagemock.ConversationRepoMock
	messageRepo      *storagemock.MessageRepoMock
	inventoryRepo    *storagemock.InventoryRepoMock
	formRepo         *storagemock.FormRepoMock
	alertRepo        *storagemock.AlertRepoMock
	dispatcher       *dispatcherMock
}

func newTestService(t *testing.T) (*AutomationService, *serviceMocks) {
	m := &serviceMocks{
		contactRepo:      new(storagemock.ContactRepoMock),
		bookingRepo:      new(storagemock.BookingRepoMock),
		conversationRepo: new(storagemock.ConversationRepoMock),
		messageRepo:      new(storagemock.MessageRepoMock),
		inventoryRepo:    new(storagemock.InventoryRepoMock),
		formRepo:         new(storagemock.FormRepoMock),
		alertRepo:        new(storagemock.AlertRepoMock),
		dispatcher:       new(dispatcherMock),
	}
	service := NewAutomationService(
		m.contactRepo, m.bookingRepo, m.conversationRepo, m.messageRepo,
		m.inventoryRepo, m.formRepo, m.alertRepo,
		m.dispatcher, zaptest.NewLogger(t),
	)
	return service, m
}

func testContext(t *testing.T, workspaceID string) context.Context {
	ctx := tenant.WithWorkspaceID(context.Background(), workspaceID)
	return logger.WithLogger(ctx, zaptest.NewLogger(t))
}

// --- EnsureConversation Tests --- //

func TestEnsureConversation_ReturnsExisting(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	existing := &model.Conversation{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1", Subject: "Contact inquiry"}
	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(existing, nil)

	id, err := service.EnsureConversation(ctx, "contact-1", "Booking: Haircut")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", id)
	// Existing conversation keeps its original subject, nothing is written.
	m.conversationRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEnsureConversation_CreatesWhenMissing(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(nil, apperrors.ErrNotFound)
	m.conversationRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)

	id, err := service.EnsureConversation(ctx, "contact-1", "Booking: Haircut")

	require.NoError(t, err)
	assert.NotEmpty(t, id)

	calls := m.conversationRepo.Calls
	created := calls[len(calls)-1].Arguments.Get(1).(model.Conversation)
	assert.Equal(t, id, created.ID)
	assert.Equal(t, "ws-1", created.WorkspaceID)
	assert.Equal(t, "contact-1", created.ContactID)
	assert.Equal(t, "Booking: Haircut", created.Subject)
	assert.Equal(t, model.ConversationStatusOpen, created.Status)
	assert.Equal(t, int32(0), created.UnreadCount)
	assert.False(t, created.AutomationPaused)
}

func TestEnsureConversation_DefaultSubject(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(nil, apperrors.ErrNotFound)
	m.conversationRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Conversation")).Return(nil)

	_, err := service.EnsureConversation(ctx, "contact-1", "")

	require.NoError(t, err)
	calls := m.conversationRepo.Calls
	created := calls[len(calls)-1].Arguments.Get(1).(model.Conversation)
	assert.Equal(t, "New conversation", created.Subject)
}

func TestEnsureConversation_LookupFailurePropagates(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.conversationRepo.On("FindByContactID", mock.Anything, "contact-1").Return(nil, apperrors.ErrDatabase)

	_, err := service.EnsureConversation(ctx, "contact-1", "Contact inquiry")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDatabase))
	m.conversationRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEnsureConversation_RequiresContactID(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	_, err := service.EnsureConversation(ctx, "", "Contact inquiry")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	m.conversationRepo.AssertNotCalled(t, "FindByContactID", mock.Anything, mock.Anything)
}

func TestEnsureConversation_RequiresWorkspace(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.EnsureConversation(context.Background(), "contact-1", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

// --- SendAutoMessage Tests --- //

func TestSendAutoMessage_ContactMessageSetsUnread(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, "conv-1", "hello", int32(1)).Return(nil)

	err := service.SendAutoMessage(ctx, "contact-1", "conv-1", "hello", model.SenderContact)

	require.NoError(t, err)
	saved := m.messageRepo.Calls[0].Arguments.Get(1).(model.Message)
	assert.Equal(t, "ws-1", saved.WorkspaceID)
	assert.Equal(t, "contact-1", saved.ContactID)
	assert.Equal(t, "conv-1", saved.ConversationID)
	assert.Equal(t, model.SenderContact, saved.Sender)
	m.conversationRepo.AssertCalled(t, "UpdateLastMessage", mock.Anything, "conv-1", "hello", int32(1))
}

func TestSendAutoMessage_AdminMessageResetsUnread(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, "conv-1", "answered", int32(0)).Return(nil)

	err := service.SendAutoMessage(ctx, "contact-1", "conv-1", "answered", model.SenderAdmin)

	require.NoError(t, err)
	m.conversationRepo.AssertCalled(t, "UpdateLastMessage", mock.Anything, "conv-1", "answered", int32(0))
}

func TestSendAutoMessage_RejectsUnknownSender(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	err := service.SendAutoMessage(ctx, "contact-1", "conv-1", "hello", "system")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	m.messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSendAutoMessage_SaveFailurePropagates(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(apperrors.ErrDatabase)

	err := service.SendAutoMessage(ctx, "contact-1", "conv-1", "hello", model.SenderContact)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDatabase))
	m.conversationRepo.AssertNotCalled(t, "UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- StaffReply Tests --- //

func TestStaffReply_PausesAutomation(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	conversation := &model.Conversation{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1"}
	m.conversationRepo.On("FindByID", mock.Anything, "conv-1").Return(conversation, nil)
	m.messageRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Message")).Return(nil)
	m.conversationRepo.On("UpdateLastMessage", mock.Anything, "conv-1", "On our way!", int32(0)).Return(nil)
	m.conversationRepo.On("SetAutomationPaused", mock.Anything, "conv-1", true).Return(nil)

	err := service.StaffReply(ctx, "conv-1", "On our way!")

	require.NoError(t, err)
	saved := m.messageRepo.Calls[0].Arguments.Get(1).(model.Message)
	assert.Equal(t, model.SenderAdmin, saved.Sender)
	assert.Equal(t, "contact-1", saved.ContactID)
	m.conversationRepo.AssertCalled(t, "SetAutomationPaused", mock.Anything, "conv-1", true)
}

func TestStaffReply_UnknownConversation(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.conversationRepo.On("FindByID", mock.Anything, "conv-missing").Return(nil, apperrors.ErrNotFound)

	err := service.StaffReply(ctx, "conv-missing", "hello")

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
	m.messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestOnStaffReply_RequiresConversationID(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	err := service.OnStaffReply(ctx, "")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	m.conversationRepo.AssertNotCalled(t, "SetAutomationPaused", mock.Anything, mock.Anything, mock.Anything)
}

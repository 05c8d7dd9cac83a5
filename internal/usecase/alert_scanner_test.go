package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/pkg/utils"
)

// savedAlerts extracts the alerts inserted during the test, in call order.
func savedAlerts(m *serviceMocks) []model.Alert {
	var alerts []model.Alert
	for _, call := range m.alertRepo.Calls {
		if call.Method == "Save" {
			alerts = append(alerts, call.Arguments.Get(1).(model.Alert))
		}
	}
	return alerts
}

// expectEmptyScans stubs the three candidate reads with empty result sets.
func expectEmptyScans(m *serviceMocks) {
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
}

func TestScan_NoConditions(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")
	expectEmptyScans(m)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Empty(t, created)
	m.alertRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestScan_LowStockCreatesAlert(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{
		{ID: "item-1", WorkspaceID: "ws-1", Name: "Gloves", Quantity: 2, MinQuantity: 5},
		{ID: "item-2", WorkspaceID: "ws-1", Name: "Towels", Quantity: 10, MinQuantity: 5},
	}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"low_stock:Gloves"}, created)

	alerts := savedAlerts(m)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertTypeLowStock, alerts[0].Type)
	assert.Equal(t, "item-1", alerts[0].SubjectID)
	assert.Equal(t, "ws-1", alerts[0].WorkspaceID)
	assert.Equal(t, "Low stock: Gloves", alerts[0].Title)
	assert.Equal(t, "Gloves has 2 left (minimum: 5).", alerts[0].Message)
	assert.Equal(t, "/dashboard/inventory", alerts[0].Link)
}

func TestScan_LowStockAtThresholdFires(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	// quantity == min_quantity is low stock.
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{
		{ID: "item-1", WorkspaceID: "ws-1", Name: "Gloves", Quantity: 5, MinQuantity: 5},
	}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"low_stock:Gloves"}, created)
}

func TestScan_DuplicateAlertIsSkippedSilently(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{
		{ID: "item-1", WorkspaceID: "ws-1", Name: "Gloves", Quantity: 2, MinQuantity: 5},
	}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).
		Return(fmt.Errorf("%w: alert already open", apperrors.ErrDuplicate))

	created, err := service.Scan(ctx)

	// Rescan of a standing condition: the open alert dedups the insert.
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestScan_OverdueFormTransitionAndAlert(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	sentAt := utils.Now().Add(-80 * time.Hour)
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{
		{ID: "sub-1", WorkspaceID: "ws-1", FormID: "form-1", ContactID: "contact-1", Status: model.SubmissionStatusPending, SentAt: sentAt},
	}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.formRepo.On("MarkSubmissionOverdue", mock.Anything, "sub-1").Return(nil)
	m.contactRepo.On("FindByID", mock.Anything, "contact-1").
		Return(&model.Contact{ID: "contact-1", WorkspaceID: "ws-1", Name: "Sarah"}, nil)
	m.formRepo.On("FindFormByID", mock.Anything, "form-1").
		Return(&model.Form{ID: "form-1", WorkspaceID: "ws-1", Name: "Intake Form"}, nil)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"overdue_form:sub-1"}, created)
	m.formRepo.AssertCalled(t, "MarkSubmissionOverdue", mock.Anything, "sub-1")

	alerts := savedAlerts(m)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertTypeOverdueForm, alerts[0].Type)
	assert.Equal(t, "sub-1", alerts[0].SubjectID)
	assert.Equal(t, "Overdue form: Intake Form", alerts[0].Title)
	assert.Equal(t,
		fmt.Sprintf(`Sarah hasn't completed "Intake Form" (sent %s).`, utils.FormatDate(sentAt)),
		alerts[0].Message)
	assert.Equal(t, "/dashboard/forms", alerts[0].Link)
}

func TestScan_OverdueFormNameFallbacks(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	sentAt := utils.Now().Add(-80 * time.Hour)
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{
		{ID: "sub-1", WorkspaceID: "ws-1", FormID: "form-1", ContactID: "contact-1", Status: model.SubmissionStatusPending, SentAt: sentAt},
	}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.formRepo.On("MarkSubmissionOverdue", mock.Anything, "sub-1").Return(nil)
	m.contactRepo.On("FindByID", mock.Anything, "contact-1").Return(nil, apperrors.ErrNotFound)
	m.formRepo.On("FindFormByID", mock.Anything, "form-1").Return(nil, apperrors.ErrNotFound)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"overdue_form:sub-1"}, created)

	alerts := savedAlerts(m)
	require.Len(t, alerts, 1)
	assert.Equal(t,
		fmt.Sprintf(`Contact hasn't completed "Form" (sent %s).`, utils.FormatDate(sentAt)),
		alerts[0].Message)
}

func TestScan_OverdueFormThresholdBoundary(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	// Just inside the 72h window: not yet overdue.
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{
		{ID: "sub-1", WorkspaceID: "ws-1", FormID: "form-1", ContactID: "contact-1", Status: model.SubmissionStatusPending, SentAt: utils.Now().Add(-71 * time.Hour)},
	}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Empty(t, created)
	m.formRepo.AssertNotCalled(t, "MarkSubmissionOverdue", mock.Anything, mock.Anything)
	m.alertRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestScan_MarkOverdueFailureSkipsItem(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{
		{ID: "sub-1", WorkspaceID: "ws-1", FormID: "form-1", ContactID: "contact-1", Status: model.SubmissionStatusPending, SentAt: utils.Now().Add(-80 * time.Hour)},
	}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{}, nil)
	m.formRepo.On("MarkSubmissionOverdue", mock.Anything, "sub-1").Return(apperrors.ErrDatabase)

	created, err := service.Scan(ctx)

	// The failed item is skipped; no alert without the status transition.
	require.NoError(t, err)
	assert.Empty(t, created)
	m.alertRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestScan_UnansweredMessageAlert(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	lastMessageAt := utils.Now().Add(-30 * time.Hour)
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{
		{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1", Status: model.ConversationStatusOpen, UnreadCount: 1, LastMessageAt: &lastMessageAt},
	}, nil)
	m.contactRepo.On("FindByID", mock.Anything, "contact-1").
		Return(&model.Contact{ID: "contact-1", WorkspaceID: "ws-1", Name: "Sarah"}, nil)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"unanswered:conv-1"}, created)

	alerts := savedAlerts(m)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertTypeUnansweredMessage, alerts[0].Type)
	assert.Equal(t, "conv-1", alerts[0].SubjectID)
	assert.Equal(t, "Unanswered: Sarah", alerts[0].Title)
	assert.Equal(t,
		fmt.Sprintf("Sarah has been waiting for a reply since %s.", utils.FormatDate(lastMessageAt)),
		alerts[0].Message)
	assert.Equal(t, "/dashboard/inbox", alerts[0].Link)
}

func TestScan_UnansweredMessageThresholdBoundary(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	// 23h: the unread message has not waited long enough.
	lastMessageAt := utils.Now().Add(-23 * time.Hour)
	m.inventoryRepo.On("FindAll", mock.Anything).Return([]model.InventoryItem{}, nil)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{
		{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1", Status: model.ConversationStatusOpen, UnreadCount: 1, LastMessageAt: &lastMessageAt},
		{ID: "conv-2", WorkspaceID: "ws-1", ContactID: "contact-2", Status: model.ConversationStatusOpen, UnreadCount: 2, LastMessageAt: nil},
	}, nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Empty(t, created)
	m.alertRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestScan_SubScanIsolation(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	// Inventory read fails; the other sub-scans still run.
	m.inventoryRepo.On("FindAll", mock.Anything).Return(nil, apperrors.ErrDatabase)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return([]model.FormSubmission{}, nil)
	lastMessageAt := utils.Now().Add(-30 * time.Hour)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return([]model.Conversation{
		{ID: "conv-1", WorkspaceID: "ws-1", ContactID: "contact-1", Status: model.ConversationStatusOpen, UnreadCount: 1, LastMessageAt: &lastMessageAt},
	}, nil)
	m.contactRepo.On("FindByID", mock.Anything, "contact-1").Return(nil, apperrors.ErrNotFound)
	m.alertRepo.On("Save", mock.Anything, mock.AnythingOfType("model.Alert")).Return(nil)

	created, err := service.Scan(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"unanswered:conv-1"}, created)
}

func TestScan_AllReadsFailed(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.inventoryRepo.On("FindAll", mock.Anything).Return(nil, apperrors.ErrDatabase)
	m.formRepo.On("FindPendingSubmissions", mock.Anything).Return(nil, apperrors.ErrDatabase)
	m.conversationRepo.On("FindOpenWithUnread", mock.Anything).Return(nil, apperrors.ErrDatabase)

	created, err := service.Scan(ctx)

	require.Error(t, err)
	assert.True(t, apperrors.IsDatabaseError(err))
	assert.Empty(t, created)
}

func TestScan_RequiresWorkspace(t *testing.T) {
	service, m := newTestService(t)

	_, err := service.Scan(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	m.inventoryRepo.AssertNotCalled(t, "FindAll", mock.Anything)
}

// --- Alert management Tests --- //

func TestResolve_RequiresAlertID(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	err := service.Resolve(ctx, "")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	m.alertRepo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestResolve_Delegates(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.alertRepo.On("Resolve", mock.Anything, "alert-1").Return(nil)

	require.NoError(t, service.Resolve(ctx, "alert-1"))
	m.alertRepo.AssertCalled(t, "Resolve", mock.Anything, "alert-1")
}

func TestResolveAll_Delegates(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	m.alertRepo.On("ResolveAll", mock.Anything).Return(nil)

	require.NoError(t, service.ResolveAll(ctx))
	m.alertRepo.AssertCalled(t, "ResolveAll", mock.Anything)
}

func TestListUnresolvedAlerts_Delegates(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t, "ws-1")

	alerts := []model.Alert{{ID: "alert-1", WorkspaceID: "ws-1", Type: model.AlertTypeLowStock, SubjectID: "item-1"}}
	m.alertRepo.On("FindUnresolved", mock.Anything).Return(alerts, nil)

	got, err := service.ListUnresolvedAlerts(ctx)

	require.NoError(t, err)
	assert.Equal(t, alerts, got)
}

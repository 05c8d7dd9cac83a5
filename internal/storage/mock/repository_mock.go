package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/opsdeck/automation-engine/internal/model"
)

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ContactRepoMock) Save(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

// UpsertByEmail mocks the UpsertByEmail method
func (m *ContactRepoMock) UpsertByEmail(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// Close mocks the Close method
func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- BookingRepo Mock ---

// BookingRepoMock mocks the BookingRepo interface
type BookingRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *BookingRepoMock) Save(ctx context.Context, booking model.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *BookingRepoMock) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method
func (m *BookingRepoMock) UpdateStatus(ctx context.Context, id string, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// Close mocks the Close method
func (m *BookingRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ConversationRepoMock) Save(ctx context.Context, conversation model.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *ConversationRepoMock) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// FindByContactID mocks the FindByContactID method
func (m *ConversationRepoMock) FindByContactID(ctx context.Context, contactID string) (*model.Conversation, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// UpdateLastMessage mocks the UpdateLastMessage method
func (m *ConversationRepoMock) UpdateLastMessage(ctx context.Context, id string, content string, unreadCount int32) error {
	args := m.Called(ctx, id, content, unreadCount)
	return args.Error(0)
}

// SetAutomationPaused mocks the SetAutomationPaused method
func (m *ConversationRepoMock) SetAutomationPaused(ctx context.Context, id string, paused bool) error {
	args := m.Called(ctx, id, paused)
	return args.Error(0)
}

// FindOpenWithUnread mocks the FindOpenWithUnread method
func (m *ConversationRepoMock) FindOpenWithUnread(ctx context.Context) ([]model.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

// Close mocks the Close method
func (m *ConversationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- MessageRepo Mock ---

// MessageRepoMock mocks the MessageRepo interface
type MessageRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *MessageRepoMock) Save(ctx context.Context, message model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// FindByConversationID mocks the FindByConversationID method
func (m *MessageRepoMock) FindByConversationID(ctx context.Context, conversationID string) ([]model.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

// Close mocks the Close method
func (m *MessageRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- InventoryRepo Mock ---

// InventoryRepoMock mocks the InventoryRepo interface
type InventoryRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *InventoryRepoMock) Save(ctx context.Context, item model.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

// FindAll mocks the FindAll method
func (m *InventoryRepoMock) FindAll(ctx context.Context) ([]model.InventoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InventoryItem), args.Error(1)
}

// Close mocks the Close method
func (m *InventoryRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- FormRepo Mock ---

// FormRepoMock mocks the FormRepo interface
type FormRepoMock struct {
	mock.Mock
}

// SaveForm mocks the SaveForm method
func (m *FormRepoMock) SaveForm(ctx context.Context, form model.Form) error {
	args := m.Called(ctx, form)
	return args.Error(0)
}

// FindFormByID mocks the FindFormByID method
func (m *FormRepoMock) FindFormByID(ctx context.Context, id string) (*model.Form, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Form), args.Error(1)
}

// SaveSubmission mocks the SaveSubmission method
func (m *FormRepoMock) SaveSubmission(ctx context.Context, submission model.FormSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

// FindPendingSubmissions mocks the FindPendingSubmissions method
func (m *FormRepoMock) FindPendingSubmissions(ctx context.Context) ([]model.FormSubmission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FormSubmission), args.Error(1)
}

// MarkSubmissionOverdue mocks the MarkSubmissionOverdue method
func (m *FormRepoMock) MarkSubmissionOverdue(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Close mocks the Close method
func (m *FormRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AlertRepo Mock ---

// AlertRepoMock mocks the AlertRepo interface
type AlertRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *AlertRepoMock) Save(ctx context.Context, alert model.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

// FindUnresolved mocks the FindUnresolved method
func (m *AlertRepoMock) FindUnresolved(ctx context.Context) ([]model.Alert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Alert), args.Error(1)
}

// Resolve mocks the Resolve method
func (m *AlertRepoMock) Resolve(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ResolveAll mocks the ResolveAll method
func (m *AlertRepoMock) ResolveAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks the Close method
func (m *AlertRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

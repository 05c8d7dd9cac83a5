package storage

import (
	"context"

	"github.com/opsdeck/automation-engine/internal/model"
)

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

// Save saves a contact
func (a *ContactRepoAdapter) Save(ctx context.Context, contact model.Contact) error {
	return a.postgres.SaveContact(ctx, contact)
}

// UpsertByEmail creates the contact or returns the existing row by email
func (a *ContactRepoAdapter) UpsertByEmail(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	return a.postgres.UpsertContactByEmail(ctx, contact)
}

// FindByID finds a contact by ID
func (a *ContactRepoAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

// Close closes the repository
func (a *ContactRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// BookingRepoAdapter adapts the PostgresRepo to the BookingRepo interface
type BookingRepoAdapter struct {
	postgres *PostgresRepo
}

// NewBookingRepoAdapter creates a new booking repository adapter
func NewBookingRepoAdapter(postgres *PostgresRepo) BookingRepo {
	return &BookingRepoAdapter{postgres: postgres}
}

// Save saves a booking
func (a *BookingRepoAdapter) Save(ctx context.Context, booking model.Booking) error {
	return a.postgres.SaveBooking(ctx, booking)
}

// FindByID finds a booking by ID
func (a *BookingRepoAdapter) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return a.postgres.FindBookingByID(ctx, id)
}

// UpdateStatus updates a booking's status
func (a *BookingRepoAdapter) UpdateStatus(ctx context.Context, id string, status string) error {
	return a.postgres.UpdateBookingStatus(ctx, id, status)
}

// Close closes the repository
func (a *BookingRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ConversationRepoAdapter adapts the PostgresRepo to the ConversationRepo interface
type ConversationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewConversationRepoAdapter creates a new conversation repository adapter
func NewConversationRepoAdapter(postgres *PostgresRepo) ConversationRepo {
	return &ConversationRepoAdapter{postgres: postgres}
}

// Save saves a conversation
func (a *ConversationRepoAdapter) Save(ctx context.Context, conversation model.Conversation) error {
	return a.postgres.SaveConversation(ctx, conversation)
}

// FindByID finds a conversation by ID
func (a *ConversationRepoAdapter) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	return a.postgres.FindConversationByID(ctx, id)
}

// FindByContactID finds the conversation belonging to a contact
func (a *ConversationRepoAdapter) FindByContactID(ctx context.Context, contactID string) (*model.Conversation, error) {
	return a.postgres.FindConversationByContactID(ctx, contactID)
}

// UpdateLastMessage rewrites the denormalized last-message cache
func (a *ConversationRepoAdapter) UpdateLastMessage(ctx context.Context, id string, content string, unreadCount int32) error {
	return a.postgres.UpdateConversationLastMessage(ctx, id, content, unreadCount)
}

// SetAutomationPaused flips the automation latch
func (a *ConversationRepoAdapter) SetAutomationPaused(ctx context.Context, id string, paused bool) error {
	return a.postgres.SetConversationAutomationPaused(ctx, id, paused)
}

// FindOpenWithUnread returns open conversations with unread messages
func (a *ConversationRepoAdapter) FindOpenWithUnread(ctx context.Context) ([]model.Conversation, error) {
	return a.postgres.FindOpenConversationsWithUnread(ctx)
}

// Close closes the repository
func (a *ConversationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// MessageRepoAdapter adapts the PostgresRepo to the MessageRepo interface
type MessageRepoAdapter struct {
	postgres *PostgresRepo
}

// NewMessageRepoAdapter creates a new message repository adapter
func NewMessageRepoAdapter(postgres *PostgresRepo) MessageRepo {
	return &MessageRepoAdapter{postgres: postgres}
}

// Save saves a message
func (a *MessageRepoAdapter) Save(ctx context.Context, message model.Message) error {
	return a.postgres.SaveMessage(ctx, message)
}

// FindByConversationID finds a conversation's messages in append order
func (a *MessageRepoAdapter) FindByConversationID(ctx context.Context, conversationID string) ([]model.Message, error) {
	return a.postgres.FindMessagesByConversationID(ctx, conversationID)
}

// Close closes the repository
func (a *MessageRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// InventoryRepoAdapter adapts the PostgresRepo to the InventoryRepo interface
type InventoryRepoAdapter struct {
	postgres *PostgresRepo
}

// NewInventoryRepoAdapter creates a new inventory repository adapter
func NewInventoryRepoAdapter(postgres *PostgresRepo) InventoryRepo {
	return &InventoryRepoAdapter{postgres: postgres}
}

// Save saves an inventory item
func (a *InventoryRepoAdapter) Save(ctx context.Context, item model.InventoryItem) error {
	return a.postgres.SaveInventoryItem(ctx, item)
}

// FindAll returns every inventory item in the workspace
func (a *InventoryRepoAdapter) FindAll(ctx context.Context) ([]model.InventoryItem, error) {
	return a.postgres.FindAllInventoryItems(ctx)
}

// Close closes the repository
func (a *InventoryRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// FormRepoAdapter adapts the PostgresRepo to the FormRepo interface
type FormRepoAdapter struct {
	postgres *PostgresRepo
}

// NewFormRepoAdapter creates a new form repository adapter
func NewFormRepoAdapter(postgres *PostgresRepo) FormRepo {
	return &FormRepoAdapter{postgres: postgres}
}

// SaveForm saves a form definition
func (a *FormRepoAdapter) SaveForm(ctx context.Context, form model.Form) error {
	return a.postgres.SaveForm(ctx, form)
}

// FindFormByID finds a form definition by ID
func (a *FormRepoAdapter) FindFormByID(ctx context.Context, id string) (*model.Form, error) {
	return a.postgres.FindFormByID(ctx, id)
}

// SaveSubmission saves a form submission
func (a *FormRepoAdapter) SaveSubmission(ctx context.Context, submission model.FormSubmission) error {
	return a.postgres.SaveFormSubmission(ctx, submission)
}

// FindPendingSubmissions returns submissions awaiting completion
func (a *FormRepoAdapter) FindPendingSubmissions(ctx context.Context) ([]model.FormSubmission, error) {
	return a.postgres.FindPendingFormSubmissions(ctx)
}

// MarkSubmissionOverdue transitions a pending submission to overdue
func (a *FormRepoAdapter) MarkSubmissionOverdue(ctx context.Context, id string) error {
	return a.postgres.MarkFormSubmissionOverdue(ctx, id)
}

// Close closes the repository
func (a *FormRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// AlertRepoAdapter adapts the PostgresRepo to the AlertRepo interface
type AlertRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAlertRepoAdapter creates a new alert repository adapter
func NewAlertRepoAdapter(postgres *PostgresRepo) AlertRepo {
	return &AlertRepoAdapter{postgres: postgres}
}

// Save inserts a new alert, subject to open-alert dedup
func (a *AlertRepoAdapter) Save(ctx context.Context, alert model.Alert) error {
	return a.postgres.SaveAlert(ctx, alert)
}

// FindUnresolved returns open alerts newest first
func (a *AlertRepoAdapter) FindUnresolved(ctx context.Context) ([]model.Alert, error) {
	return a.postgres.FindUnresolvedAlerts(ctx)
}

// Resolve marks a single alert resolved
func (a *AlertRepoAdapter) Resolve(ctx context.Context, id string) error {
	return a.postgres.ResolveAlert(ctx, id)
}

// ResolveAll marks every open alert in the workspace resolved
func (a *AlertRepoAdapter) ResolveAll(ctx context.Context) error {
	return a.postgres.ResolveAllAlerts(ctx)
}

// Close closes the repository
func (a *AlertRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ ContactRepo = (*ContactRepoAdapter)(nil)
var _ BookingRepo = (*BookingRepoAdapter)(nil)
var _ ConversationRepo = (*ConversationRepoAdapter)(nil)
var _ MessageRepo = (*MessageRepoAdapter)(nil)
var _ InventoryRepo = (*InventoryRepoAdapter)(nil)
var _ FormRepo = (*FormRepoAdapter)(nil)
var _ AlertRepo = (*AlertRepoAdapter)(nil)

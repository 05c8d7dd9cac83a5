package storage

import (
	"context"

	"github.com/opsdeck/automation-engine/internal/model"
)

// ContactRepo defines contact storage operations
type ContactRepo interface {
	Save(ctx context.Context, contact model.Contact) error
	// UpsertByEmail creates the contact or returns the existing row with the
	// same (workspace_id, email); email is the intake dedup key.
	UpsertByEmail(ctx context.Context, contact model.Contact) (*model.Contact, error)
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	Close(ctx context.Context) error
}

// BookingRepo defines booking storage operations
type BookingRepo interface {
	Save(ctx context.Context, booking model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status string) error
	Close(ctx context.Context) error
}

// ConversationRepo defines conversation storage operations
type ConversationRepo interface {
	Save(ctx context.Context, conversation model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByContactID(ctx context.Context, contactID string) (*model.Conversation, error)
	// UpdateLastMessage rewrites the denormalized last-message cache. The
	// unread count is an unconditional overwrite, never an increment.
	UpdateLastMessage(ctx context.Context, id string, content string, unreadCount int32) error
	SetAutomationPaused(ctx context.Context, id string, paused bool) error
	// FindOpenWithUnread returns open conversations with unread_count > 0,
	// the candidate set for the unanswered-message scan.
	FindOpenWithUnread(ctx context.Context) ([]model.Conversation, error)
	Close(ctx context.Context) error
}

// MessageRepo defines message storage operations
type MessageRepo interface {
	Save(ctx context.Context, message model.Message) error
	FindByConversationID(ctx context.Context, conversationID string) ([]model.Message, error)
	Close(ctx context.Context) error
}

// InventoryRepo defines inventory storage operations
type InventoryRepo interface {
	Save(ctx context.Context, item model.InventoryItem) error
	FindAll(ctx context.Context) ([]model.InventoryItem, error)
	Close(ctx context.Context) error
}

// FormRepo defines form and form submission storage operations
type FormRepo interface {
	SaveForm(ctx context.Context, form model.Form) error
	FindFormByID(ctx context.Context, id string) (*model.Form, error)
	SaveSubmission(ctx context.Context, submission model.FormSubmission) error
	FindPendingSubmissions(ctx context.Context) ([]model.FormSubmission, error)
	// MarkSubmissionOverdue performs the one-way pending -> overdue
	// transition. Re-marking an already overdue submission is a no-op write.
	MarkSubmissionOverdue(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// AlertRepo defines alert storage operations
type AlertRepo interface {
	// Save inserts a new alert. When an equivalent unresolved alert already
	// exists (same workspace, type, subject) the partial unique index rejects
	// the insert and Save returns an error wrapping apperrors.ErrDuplicate.
	Save(ctx context.Context, alert model.Alert) error
	FindUnresolved(ctx context.Context) ([]model.Alert, error)
	Resolve(ctx context.Context, id string) error
	ResolveAll(ctx context.Context) error
	Close(ctx context.Context) error
}

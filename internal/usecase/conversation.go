package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

const defaultConversationSubject = "New conversation"

// EnsureConversation returns the ID of the contact's conversation, creating
// it when absent. The subject applies only on creation; an existing
// conversation keeps its original subject (first write wins). Creation
// failures propagate because downstream messaging depends on the row.
func (s *AutomationService) EnsureConversation(ctx context.Context, contactID, subject string) (string, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if contactID == "" {
		return "", fmt.Errorf("%w: contact_id is required", apperrors.ErrValidation)
	}

	existing, err := s.conversationRepo.FindByContactID(ctx, contactID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return "", fmt.Errorf("failed to look up conversation for contact %s: %w", contactID, err)
	}

	if subject == "" {
		subject = defaultConversationSubject
	}
	conversation := model.Conversation{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ContactID:   contactID,
		Subject:     subject,
		UnreadCount: 0,
		Status:      model.ConversationStatusOpen,
	}
	if err := s.conversationRepo.Save(ctx, conversation); err != nil {
		return "", fmt.Errorf("failed to create conversation for contact %s: %w", contactID, err)
	}

	logger.FromContext(ctx).Info("Created conversation",
		zap.String("conversation_id", conversation.ID),
		zap.String("contact_id", contactID),
		zap.String("subject", subject))
	return conversation.ID, nil
}

// SendAutoMessage appends a message to a conversation and rewrites the
// conversation's last-message cache. The unread count is overwritten, not
// incremented: 1 for a contact-sent message awaiting staff attention, 0 for
// an admin message that just answered the thread.
func (s *AutomationService) SendAutoMessage(ctx context.Context, contactID, conversationID, content, sender string) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if sender != model.SenderAdmin && sender != model.SenderContact {
		return fmt.Errorf("%w: sender must be %q or %q", apperrors.ErrValidation, model.SenderAdmin, model.SenderContact)
	}

	message := model.Message{
		ID:             uuid.NewString(),
		WorkspaceID:    workspaceID,
		ContactID:      contactID,
		ConversationID: conversationID,
		Content:        content,
		Sender:         sender,
	}
	if err := s.messageRepo.Save(ctx, message); err != nil {
		return fmt.Errorf("failed to append message to conversation %s: %w", conversationID, err)
	}

	var unreadCount int32
	if sender == model.SenderContact {
		unreadCount = 1
	}
	if err := s.conversationRepo.UpdateLastMessage(ctx, conversationID, content, unreadCount); err != nil {
		return fmt.Errorf("failed to update conversation %s after message: %w", conversationID, err)
	}
	return nil
}

// OnStaffReply flips the one-way automation latch for a conversation. Once a
// human has engaged, automated replies for that conversation must stop.
func (s *AutomationService) OnStaffReply(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversation_id is required", apperrors.ErrValidation)
	}
	return s.conversationRepo.SetAutomationPaused(ctx, conversationID, true)
}

// StaffReply appends an admin reply to a conversation, resets its unread
// count and pauses automation for it.
func (s *AutomationService) StaffReply(ctx context.Context, conversationID, content string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversation_id is required", apperrors.ErrValidation)
	}
	if content == "" {
		return fmt.Errorf("%w: content is required", apperrors.ErrValidation)
	}

	conversation, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	if err := s.SendAutoMessage(ctx, conversation.ContactID, conversationID, content, model.SenderAdmin); err != nil {
		return err
	}
	return s.OnStaffReply(ctx, conversationID)
}

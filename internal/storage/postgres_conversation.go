package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/observer"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/pkg/logger"
	"github.com/opsdeck/automation-engine/pkg/utils"
)

// --- Conversation Repository Methods ---

// SaveConversation inserts a new conversation record. The one-per-contact
// invariant is owned by the automation service's ensure path; this method
// performs a plain insert.
func (r *PostgresRepo) SaveConversation(ctx context.Context, conversation model.Conversation) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, conversation.WorkspaceID); err != nil {
		return err
	}
	conversation.WorkspaceID = workspaceID
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if conversation.Status == "" {
		conversation.Status = model.ConversationStatusOpen
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&conversation).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveConversation", operation)
	observer.ObserveDbOperationDuration("save", "conversation", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save conversation after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindConversationByID finds a conversation by its ID within the tenant workspace.
func (r *PostgresRepo) FindConversationByID(ctx context.Context, id string) (*model.Conversation, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var conversation model.Conversation
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&conversation)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: conversation_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindConversationByID", operation)
	observer.ObserveDbOperationDuration("find", "conversation", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &conversation, nil
}

// FindConversationByContactID finds the conversation belonging to a contact.
func (r *PostgresRepo) FindConversationByContactID(ctx context.Context, contactID string) (*model.Conversation, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var conversation model.Conversation
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ? AND contact_id = ?", workspaceID, contactID).
			First(&conversation)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: conversation for contact %s: %w", apperrors.ErrNotFound, contactID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindConversationByContactID", operation)
	observer.ObserveDbOperationDuration("find", "conversation", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &conversation, nil
}

// UpdateConversationLastMessage rewrites the denormalized last-message cache:
// last_message, last_message_at (now) and unread_count. The unread count is
// an unconditional overwrite by contract.
func (r *PostgresRepo) UpdateConversationLastMessage(ctx context.Context, id string, content string, unreadCount int32) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		now := utils.Now()
		result := r.db.WithContext(ctx).Model(&model.Conversation{}).
			Where("id = ? AND workspace_id = ?", id, workspaceID).
			Updates(map[string]interface{}{
				"last_message":    content,
				"last_message_at": now,
				"unread_count":    unreadCount,
				"updated_at":      now,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation_id %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateConversationLastMessage", operation)
	observer.ObserveDbOperationDuration("update", "conversation", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update conversation last message after retries",
			zap.String("conversation_id", id), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// SetConversationAutomationPaused flips the automation latch for a conversation.
func (r *PostgresRepo) SetConversationAutomationPaused(ctx context.Context, id string, paused bool) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Conversation{}).
			Where("id = ? AND workspace_id = ?", id, workspaceID).
			Update("automation_paused", paused)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation_id %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SetConversationAutomationPaused", operation)
	observer.ObserveDbOperationDuration("update", "conversation", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to set automation_paused after retries",
			zap.String("conversation_id", id), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindOpenConversationsWithUnread returns the unanswered-message scan
// candidate set: open conversations with unread_count > 0.
func (r *PostgresRepo) FindOpenConversationsWithUnread(ctx context.Context) ([]model.Conversation, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var conversations []model.Conversation
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ? AND status = ? AND unread_count > 0", workspaceID, model.ConversationStatusOpen).
			Find(&conversations)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindOpenConversationsWithUnread", operation)
	observer.ObserveDbOperationDuration("find", "conversation", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return conversations, nil
}

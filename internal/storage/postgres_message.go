package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/observer"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/pkg/logger"
	"github.com/opsdeck/automation-engine/pkg/utils"
)

// --- Message Repository Methods ---

// SaveMessage appends a message row. Messages are immutable once created.
func (r *PostgresRepo) SaveMessage(ctx context.Context, message model.Message) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, message.WorkspaceID); err != nil {
		return err
	}
	message.WorkspaceID = workspaceID
	if message.ID == "" {
		message.ID = uuid.NewString()
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&message).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveMessage", operation)
	observer.ObserveDbOperationDuration("save", "message", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save message after retries",
			zap.String("conversation_id", message.ConversationID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindMessagesByConversationID returns a conversation's messages in append order.
func (r *PostgresRepo) FindMessagesByConversationID(ctx context.Context, conversationID string) ([]model.Message, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var messages []model.Message
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ? AND conversation_id = ?", workspaceID, conversationID).
			Order("created_at ASC").
			Find(&messages)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindMessagesByConversationID", operation)
	observer.ObserveDbOperationDuration("find", "message", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return messages, nil
}

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

// --- Contact Repository Methods ---

// SaveContact inserts a new contact record.
func (r *PostgresRepo) SaveContact(ctx context.Context, contact model.Contact) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, contact.WorkspaceID); err != nil {
		return err
	}
	contact.WorkspaceID = workspaceID
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&contact).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveContact", operation)
	observer.ObserveDbOperationDuration("save", "contact", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpsertContactByEmail creates the contact, or returns the existing row that
// shares its (workspace_id, email). Upsert-by-email is the only contact dedup
// mechanism; there is no later identity merge.
func (r *PostgresRepo) UpsertContactByEmail(ctx context.Context, contact model.Contact) (*model.Contact, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, contact.WorkspaceID); err != nil {
		return nil, err
	}
	contact.WorkspaceID = workspaceID

	var existing model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ? AND email = ?", workspaceID, contact.Email).
			First(&existing)
		findErr := result.Error

		if findErr == nil {
			return nil // Existing contact wins; no field updates on re-intake
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: failed to look up contact by email: %w", apperrors.ErrDatabase, findErr)
		}

		if contact.ID == "" {
			contact.ID = uuid.NewString()
		}
		if createErr := r.db.WithContext(ctx).Create(&contact).Error; createErr != nil {
			mapped := checkConstraintViolation(createErr)
			// A concurrent intake may have inserted the same email between
			// the lookup and the insert; treat the duplicate as the winner.
			if apperrors.IsDuplicateError(mapped) {
				if reErr := r.db.WithContext(ctx).
					Where("workspace_id = ? AND email = ?", workspaceID, contact.Email).
					First(&existing).Error; reErr == nil {
					return nil
				}
			}
			return mapped
		}
		existing = contact
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertContactByEmail", operation)
	observer.ObserveDbOperationDuration("upsert", "contact", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert contact after retries", zap.Error(commitErr))
		return nil, commitErr
	}
	return &existing, nil
}

// FindContactByID finds a contact by its ID within the tenant workspace.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find", "contact", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &contact, nil
}

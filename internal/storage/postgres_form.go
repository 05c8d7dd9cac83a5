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

// --- Form Repository Methods ---

// SaveForm inserts a new form definition.
func (r *PostgresRepo) SaveForm(ctx context.Context, form model.Form) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, form.WorkspaceID); err != nil {
		return err
	}
	form.WorkspaceID = workspaceID
	if form.ID == "" {
		form.ID = uuid.NewString()
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&form).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveForm", operation)
	observer.ObserveDbOperationDuration("save", "form", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save form after retries",
			zap.String("form_title", form.Name), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindFormByID finds a form definition by its ID within the tenant workspace.
func (r *PostgresRepo) FindFormByID(ctx context.Context, id string) (*model.Form, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var form model.Form
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&form)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: form_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindFormByID", operation)
	observer.ObserveDbOperationDuration("find", "form", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &form, nil
}

// SaveFormSubmission inserts a new form submission in pending status unless
// the caller set one.
func (r *PostgresRepo) SaveFormSubmission(ctx context.Context, submission model.FormSubmission) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, submission.WorkspaceID); err != nil {
		return err
	}
	submission.WorkspaceID = workspaceID
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = model.SubmissionStatusPending
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&submission).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveFormSubmission", operation)
	observer.ObserveDbOperationDuration("save", "form_submission", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save form submission after retries",
			zap.String("form_id", submission.FormID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindPendingFormSubmissions returns submissions still awaiting completion,
// the candidate set for the overdue-form scan.
func (r *PostgresRepo) FindPendingFormSubmissions(ctx context.Context) ([]model.FormSubmission, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var submissions []model.FormSubmission
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ? AND status = ?", workspaceID, model.SubmissionStatusPending).
			Find(&submissions)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindPendingFormSubmissions", operation)
	observer.ObserveDbOperationDuration("find", "form_submission", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return submissions, nil
}

// MarkFormSubmissionOverdue performs the one-way pending -> overdue
// transition. A submission already overdue or completed is left untouched and
// the call succeeds.
func (r *PostgresRepo) MarkFormSubmissionOverdue(ctx context.Context, id string) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.FormSubmission{}).
			Where("id = ? AND workspace_id = ? AND status = ?", id, workspaceID, model.SubmissionStatusPending).
			Update("status", model.SubmissionStatusOverdue)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "MarkFormSubmissionOverdue", operation)
	observer.ObserveDbOperationDuration("update", "form_submission", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to mark form submission overdue after retries",
			zap.String("submission_id", id), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

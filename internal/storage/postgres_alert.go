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

// --- Alert Repository Methods ---

// SaveAlert inserts a new alert. The partial unique index on
// (workspace_id, type, subject_id) WHERE NOT resolved makes the database the
// dedup authority: if an equivalent unresolved alert already exists the insert
// fails with a unique violation, which surfaces here as ErrDuplicate.
func (r *PostgresRepo) SaveAlert(ctx context.Context, alert model.Alert) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, alert.WorkspaceID); err != nil {
		return err
	}
	alert.WorkspaceID = workspaceID
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&alert).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveAlert", operation)
	observer.ObserveDbOperationDuration("save", "alert", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		if apperrors.IsDuplicateError(commitErr) {
			// Expected during rescans; the caller decides whether to log.
			return commitErr
		}
		logger.FromContext(ctx).Error("Failed to save alert after retries",
			zap.String("alert_type", alert.Type), zap.String("subject_id", alert.SubjectID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindUnresolvedAlerts returns open alerts newest first.
func (r *PostgresRepo) FindUnresolvedAlerts(ctx context.Context) ([]model.Alert, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var alerts []model.Alert
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ? AND resolved = ?", workspaceID, false).
			Order("created_at DESC").
			Find(&alerts)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindUnresolvedAlerts", operation)
	observer.ObserveDbOperationDuration("find", "alert", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return alerts, nil
}

// ResolveAlert marks a single alert resolved. Resolving frees the dedup slot,
// so the next scan may create a fresh alert for the same subject.
func (r *PostgresRepo) ResolveAlert(ctx context.Context, id string) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Alert{}).
			Where("id = ? AND workspace_id = ?", id, workspaceID).
			Update("resolved", true)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: alert_id %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ResolveAlert", operation)
	observer.ObserveDbOperationDuration("update", "alert", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to resolve alert after retries",
			zap.String("alert_id", id), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// ResolveAllAlerts marks every open alert in the workspace resolved.
func (r *PostgresRepo) ResolveAllAlerts(ctx context.Context) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Alert{}).
			Where("workspace_id = ? AND resolved = ?", workspaceID, false).
			Update("resolved", true)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ResolveAllAlerts", operation)
	observer.ObserveDbOperationDuration("update", "alert", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to resolve all alerts after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

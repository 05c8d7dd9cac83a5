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

// --- Booking Repository Methods ---

// SaveBooking inserts a new booking record.
func (r *PostgresRepo) SaveBooking(ctx context.Context, booking model.Booking) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, booking.WorkspaceID); err != nil {
		return err
	}
	booking.WorkspaceID = workspaceID
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = model.BookingStatusConfirmed
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&booking).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveBooking", operation)
	observer.ObserveDbOperationDuration("save", "booking", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save booking after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindBookingByID finds a booking by its ID within the tenant workspace.
func (r *PostgresRepo) FindBookingByID(ctx context.Context, id string) (*model.Booking, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var booking model.Booking
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&booking)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: booking_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindBookingByID", operation)
	observer.ObserveDbOperationDuration("find", "booking", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &booking, nil
}

// UpdateBookingStatus transitions a booking to the given status.
func (r *PostgresRepo) UpdateBookingStatus(ctx context.Context, id string, status string) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Booking{}).
			Where("id = ? AND workspace_id = ?", id, workspaceID).
			Update("status", status)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: booking_id %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateBookingStatus", operation)
	observer.ObserveDbOperationDuration("update", "booking", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update booking status after retries",
			zap.String("booking_id", id), zap.String("status", status), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

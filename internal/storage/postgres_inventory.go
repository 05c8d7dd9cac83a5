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

// --- Inventory Repository Methods ---

// SaveInventoryItem inserts or updates an inventory item by primary key.
func (r *PostgresRepo) SaveInventoryItem(ctx context.Context, item model.InventoryItem) error {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if err := workspaceScope(workspaceID, item.WorkspaceID); err != nil {
		return err
	}
	item.WorkspaceID = workspaceID
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	operation := func() error {
		if saveErr := r.db.WithContext(ctx).Save(&item).Error; saveErr != nil {
			return checkConstraintViolation(saveErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveInventoryItem", operation)
	observer.ObserveDbOperationDuration("save", "inventory_item", workspaceID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save inventory item after retries",
			zap.String("item_name", item.Name), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindAllInventoryItems returns every inventory item in the workspace. The
// low-stock scan filters in memory; inventories here are small by design.
func (r *PostgresRepo) FindAllInventoryItems(ctx context.Context) ([]model.InventoryItem, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var items []model.InventoryItem
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("workspace_id = ?", workspaceID).
			Order("name ASC").
			Find(&items)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindAllInventoryItems", operation)
	observer.ObserveDbOperationDuration("find", "inventory_item", workspaceID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return items, nil
}

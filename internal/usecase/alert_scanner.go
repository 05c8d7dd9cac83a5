package usecase

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

// Condition thresholds. Both comparisons are strict: a timestamp exactly at
// the cutoff instant does not fire.
const (
	overdueFormThreshold       = 72 * time.Hour
	unansweredMessageThreshold = 24 * time.Hour
)

// Dashboard links carried on alerts.
const (
	inventoryLink = "/dashboard/inventory"
	formsLink     = "/dashboard/forms"
	inboxLink     = "/dashboard/inbox"
)

// Scan runs the three alert sub-scans for the tenant workspace and returns
// identifiers for the alerts it created, in the form
// "low_stock:<item name>", "overdue_form:<submission id>" and
// "unanswered:<conversation id>".
//
// The sub-scans are independent: a per-item failure is logged and skipped,
// and one sub-scan failing never aborts the others. Scan only returns an
// error when every sub-scan's candidate read failed, since a partially
// failed scan self-heals on the next trigger.
func (s *AutomationService) Scan(ctx context.Context) ([]string, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	log := logger.FromContext(ctx)
	start := utils.Now()

	created := []string{}
	failedReads := 0

	if entries, readErr := s.scanLowStock(ctx, workspaceID); readErr != nil {
		log.Error("Low-stock scan failed to read inventory", zap.Error(readErr))
		failedReads++
	} else {
		created = append(created, entries...)
	}

	if entries, readErr := s.scanOverdueForms(ctx, workspaceID); readErr != nil {
		log.Error("Overdue-form scan failed to read submissions", zap.Error(readErr))
		failedReads++
	} else {
		created = append(created, entries...)
	}

	if entries, readErr := s.scanUnansweredMessages(ctx, workspaceID); readErr != nil {
		log.Error("Unanswered-message scan failed to read conversations", zap.Error(readErr))
		failedReads++
	} else {
		created = append(created, entries...)
	}

	var scanErr error
	if failedReads == 3 {
		scanErr = fmt.Errorf("%w: all alert sub-scans failed", apperrors.ErrDatabase)
	}
	observer.ObserveScanDuration(workspaceID, time.Since(start), scanErr)
	log.Info("Alert scan finished",
		zap.Int("created", len(created)),
		zap.Int("failed_sub_scans", failedReads),
		zap.Duration("duration", time.Since(start)))
	return created, scanErr
}

// scanLowStock creates a low_stock alert for every inventory item at or
// below its reorder threshold that has no open alert yet.
func (s *AutomationService) scanLowStock(ctx context.Context, workspaceID string) ([]string, error) {
	items, err := s.inventoryRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	var created []string
	for i := range items {
		item := items[i]
		if !item.IsLowStock() {
			continue
		}

		alert := model.Alert{
			ID:          uuid.NewString(),
			WorkspaceID: workspaceID,
			Type:        model.AlertTypeLowStock,
			SubjectID:   item.ID,
			Title:       fmt.Sprintf("Low stock: %s", item.Name),
			Message:     fmt.Sprintf("%s has %d left (minimum: %d).", item.Name, item.Quantity, item.MinQuantity),
			Link:        inventoryLink,
		}
		if ok := s.createAlert(ctx, log, alert); ok {
			created = append(created, "low_stock:"+item.Name)
		}
	}
	return created, nil
}

// scanOverdueForms transitions pending submissions past the threshold to
// overdue and creates an overdue_form alert for each.
func (s *AutomationService) scanOverdueForms(ctx context.Context, workspaceID string) ([]string, error) {
	submissions, err := s.formRepo.FindPendingSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	cutoff := utils.Now().Add(-overdueFormThreshold)

	var created []string
	for i := range submissions {
		sub := submissions[i]
		if !sub.SentAt.Before(cutoff) {
			continue
		}

		// One-way transition; re-marking an already overdue submission is a
		// safe no-op, so this write is not checked for idempotency.
		if err := s.formRepo.MarkSubmissionOverdue(ctx, sub.ID); err != nil {
			log.Error("Failed to mark form submission overdue, skipping item",
				zap.String("submission_id", sub.ID), zap.Error(err))
			continue
		}

		contactName := "Contact"
		if contact, lookupErr := s.contactRepo.FindByID(ctx, sub.ContactID); lookupErr == nil {
			contactName = contact.Name
		}
		formName := "Form"
		if form, lookupErr := s.formRepo.FindFormByID(ctx, sub.FormID); lookupErr == nil {
			formName = form.Name
		}

		alert := model.Alert{
			ID:          uuid.NewString(),
			WorkspaceID: workspaceID,
			Type:        model.AlertTypeOverdueForm,
			SubjectID:   sub.ID,
			Title:       fmt.Sprintf("Overdue form: %s", formName),
			Message:     fmt.Sprintf("%s hasn't completed %q (sent %s).", contactName, formName, utils.FormatDate(sub.SentAt)),
			Link:        formsLink,
		}
		if ok := s.createAlert(ctx, log, alert); ok {
			created = append(created, "overdue_form:"+sub.ID)
		}
	}
	return created, nil
}

// scanUnansweredMessages creates an unanswered_message alert for every open
// conversation whose unread messages have waited past the threshold.
func (s *AutomationService) scanUnansweredMessages(ctx context.Context, workspaceID string) ([]string, error) {
	conversations, err := s.conversationRepo.FindOpenWithUnread(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	cutoff := utils.Now().Add(-unansweredMessageThreshold)

	var created []string
	for i := range conversations {
		conv := conversations[i]
		if conv.LastMessageAt == nil || !conv.LastMessageAt.Before(cutoff) {
			continue
		}

		contactName := "Contact"
		if contact, lookupErr := s.contactRepo.FindByID(ctx, conv.ContactID); lookupErr == nil {
			contactName = contact.Name
		}

		alert := model.Alert{
			ID:          uuid.NewString(),
			WorkspaceID: workspaceID,
			Type:        model.AlertTypeUnansweredMessage,
			SubjectID:   conv.ID,
			Title:       fmt.Sprintf("Unanswered: %s", contactName),
			Message:     fmt.Sprintf("%s has been waiting for a reply since %s.", contactName, utils.FormatDate(*conv.LastMessageAt)),
			Link:        inboxLink,
		}
		if ok := s.createAlert(ctx, log, alert); ok {
			created = append(created, "unanswered:"+conv.ID)
		}
	}
	return created, nil
}

// createAlert inserts an alert and reports whether a new row was created.
// A duplicate-key rejection means an equivalent open alert already exists,
// which is the dedup contract working; any other failure is logged and the
// item is skipped.
func (s *AutomationService) createAlert(ctx context.Context, log *zap.Logger, alert model.Alert) bool {
	err := s.alertRepo.Save(ctx, alert)
	if err == nil {
		observer.IncAlertsCreated(alert.WorkspaceID, alert.Type)
		return true
	}
	if apperrors.IsDuplicateError(err) {
		observer.IncAlertsDeduped(alert.WorkspaceID, alert.Type)
		log.Debug("Alert already open for subject, skipping",
			zap.String("alert_type", alert.Type), zap.String("subject_id", alert.SubjectID))
		return false
	}
	log.Error("Failed to create alert, skipping item",
		zap.String("alert_type", alert.Type), zap.String("subject_id", alert.SubjectID), zap.Error(err))
	return false
}

// ListUnresolvedAlerts returns the workspace's open alerts newest first.
func (s *AutomationService) ListUnresolvedAlerts(ctx context.Context) ([]model.Alert, error) {
	return s.alertRepo.FindUnresolved(ctx)
}

// Resolve marks a single alert resolved.
func (s *AutomationService) Resolve(ctx context.Context, alertID string) error {
	if alertID == "" {
		return fmt.Errorf("%w: alert_id is required", apperrors.ErrValidation)
	}
	return s.alertRepo.Resolve(ctx, alertID)
}

// ResolveAll marks every open alert in the tenant workspace resolved.
func (s *AutomationService) ResolveAll(ctx context.Context) error {
	return s.alertRepo.ResolveAll(ctx)
}

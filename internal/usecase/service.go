package usecase

import (
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/notifier"
	"github.com/opsdeck/automation-engine/internal/storage"
)

// AutomationService orchestrates the conversation automations, event
// automations and the alert scanner over the workspace-scoped repositories.
// Dependencies are injected so tests can substitute fakes; there is no
// ambient store handle anywhere in the package.
type AutomationService struct {
	contactRepo      storage.ContactRepo
	bookingRepo      storage.BookingRepo
	conversationRepo storage.ConversationRepo
	messageRepo      storage.MessageRepo
	inventoryRepo    storage.InventoryRepo
	formRepo         storage.FormRepo
	alertRepo        storage.AlertRepo
	dispatcher       notifier.Dispatcher
	baseLogger       *zap.Logger
}

// NewAutomationService creates a new automation service with injected
// repositories and notification dispatcher.
func NewAutomationService(
	contactRepo storage.ContactRepo,
	bookingRepo storage.BookingRepo,
	conversationRepo storage.ConversationRepo,
	messageRepo storage.MessageRepo,
	inventoryRepo storage.InventoryRepo,
	formRepo storage.FormRepo,
	alertRepo storage.AlertRepo,
	dispatcher notifier.Dispatcher,
	baseLogger *zap.Logger,
) *AutomationService {
	return &AutomationService{
		contactRepo:      contactRepo,
		bookingRepo:      bookingRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		inventoryRepo:    inventoryRepo,
		formRepo:         formRepo,
		alertRepo:        alertRepo,
		dispatcher:       dispatcher,
		baseLogger:       baseLogger.Named("automation_service"),
	}
}

package ingestion

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/usecase"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

// EventHandlers binds the automation service to the event router. Handler
// errors are classified for the ack/nak decision: malformed or invalid
// payloads are fatal (redelivery cannot fix them), store failures are
// retryable.
type EventHandlers struct {
	service *usecase.AutomationService
}

// NewEventHandlers creates handlers around the automation service.
func NewEventHandlers(service *usecase.AutomationService) *EventHandlers {
	return &EventHandlers{service: service}
}

// RegisterAll wires every known event type into the router.
func (h *EventHandlers) RegisterAll(router *Router) {
	router.Register(model.V1BookingCreated, h.HandleBookingCreated)
	router.Register(model.V1ContactCreated, h.HandleContactCreated)
}

// HandleBookingCreated processes a v1.bookings.created event.
func (h *EventHandlers) HandleBookingCreated(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	var payload model.BookingCreatedPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		return apperrors.NewFatal(err, "failed to unmarshal booking created payload")
	}

	conversationID, err := h.service.OnBookingCreated(ctx, payload)
	if err != nil {
		return classifyAutomationError(err, "booking created automation failed")
	}

	logger.FromContext(ctx).Info("Booking created automation finished",
		zap.String("contact_id", payload.ContactID),
		zap.String("conversation_id", conversationID))
	return nil
}

// HandleContactCreated processes a v1.contacts.created event.
func (h *EventHandlers) HandleContactCreated(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	var payload model.ContactCreatedPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		return apperrors.NewFatal(err, "failed to unmarshal contact created payload")
	}

	conversationID, err := h.service.OnContactCreated(ctx, payload)
	if err != nil {
		return classifyAutomationError(err, "contact created automation failed")
	}

	logger.FromContext(ctx).Info("Contact created automation finished",
		zap.String("contact_id", payload.ContactID),
		zap.String("conversation_id", conversationID))
	return nil
}

// classifyAutomationError maps automation failures onto the redelivery
// contract: validation and missing-entity failures terminate the message,
// everything else (store outages) is worth redelivering.
func classifyAutomationError(err error, message string) error {
	if apperrors.IsValidationError(err) || apperrors.IsBadRequestError(err) || apperrors.IsNotFoundError(err) {
		return apperrors.NewFatal(err, "%s", message)
	}
	return apperrors.NewRetryable(err, "%s", message)
}

package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/notifier"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/internal/validator"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

// OnBookingCreated runs the booking-created automation chain: ensure a
// conversation under a booking subject, post the confirmation message as
// admin, then best-effort SMS if the contact has a phone number. The booking
// row is already committed before this runs, so there is no rollback; SMS
// failure never fails the operation.
func (s *AutomationService) OnBookingCreated(ctx context.Context, payload model.BookingCreatedPayload) (string, error) {
	if err := validator.Validate(payload); err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	log := logger.FromContext(ctx)

	contactName := payload.ContactName
	if contactName == "" {
		contactName = "there"
	}
	service := payload.Service
	if service == "" {
		service = "your service"
	}
	date := payload.Date
	if date == "" {
		date = "TBD"
	}
	bookingTime := payload.Time
	if bookingTime == "" {
		bookingTime = "TBD"
	}

	conversationID, err := s.EnsureConversation(ctx, payload.ContactID, "Booking: "+service)
	if err != nil {
		return "", err
	}

	confirmation := fmt.Sprintf(
		"Hi %s! Your booking for %q on %s at %s has been confirmed. "+
			"We'll send you a reminder before your appointment. "+
			"Reply here if you have any questions!",
		contactName, service, date, bookingTime)
	if err := s.SendAutoMessage(ctx, payload.ContactID, conversationID, confirmation, model.SenderAdmin); err != nil {
		return "", err
	}

	// Best effort from here on; the confirmation message already stands.
	contact, err := s.contactRepo.FindByID(ctx, payload.ContactID)
	if err != nil {
		log.Warn("Skipping booking SMS: contact lookup failed",
			zap.String("contact_id", payload.ContactID), zap.Error(err))
		return conversationID, nil
	}
	if contact.Phone != "" && s.dispatcher != nil {
		smsBody := fmt.Sprintf("Hi %s! Your %q on %s at %s is confirmed. Reply HELP for assistance.",
			contactName, service, date, bookingTime)
		task := notifier.TaskData{
			Ctx: context.WithoutCancel(ctx),
			Notification: notifier.Notification{
				WorkspaceID: workspaceID,
				Channel:     notifier.ChannelSMS,
				Recipient:   contact.Phone,
				Body:        smsBody,
			},
		}
		if err := s.dispatcher.Submit(task); err != nil {
			log.Warn("Failed to queue booking confirmation SMS", zap.Error(err))
		}
	}

	return conversationID, nil
}

// OnContactCreated runs the contact-created automation chain: ensure a
// conversation, post the customer's own inbound message first when present,
// then the fixed welcome reply as admin. The ordering is a hard requirement;
// the thread must read customer-then-welcome.
func (s *AutomationService) OnContactCreated(ctx context.Context, payload model.ContactCreatedPayload) (string, error) {
	if err := validator.Validate(payload); err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}

	conversationID, err := s.EnsureConversation(ctx, payload.ContactID, "Contact inquiry")
	if err != nil {
		return "", err
	}

	if payload.Message != "" {
		if err := s.SendAutoMessage(ctx, payload.ContactID, conversationID, payload.Message, model.SenderContact); err != nil {
			return "", err
		}
	}

	contactName := payload.ContactName
	if contactName == "" {
		contactName = "there"
	}
	welcome := fmt.Sprintf(
		"Hi %s! Thanks for reaching out. "+
			"We've received your message and a team member will get back to you shortly. "+
			"Feel free to reply here if you have any additional questions!",
		contactName)
	if err := s.SendAutoMessage(ctx, payload.ContactID, conversationID, welcome, model.SenderAdmin); err != nil {
		return "", err
	}

	return conversationID, nil
}

// IntakeContact creates or dedups a contact by email, then runs the
// contact-created automation for it. The automation shares the intake's
// failure domain up to conversation creation; the contact row itself is
// committed first.
func (s *AutomationService) IntakeContact(ctx context.Context, contact model.Contact, message string) (*model.Contact, string, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	contact.WorkspaceID = workspaceID
	if err := validator.Validate(contact); err != nil {
		return nil, "", fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}

	saved, err := s.contactRepo.UpsertByEmail(ctx, contact)
	if err != nil {
		return nil, "", fmt.Errorf("failed to save contact: %w", err)
	}

	conversationID, err := s.OnContactCreated(ctx, model.ContactCreatedPayload{
		WorkspaceID: workspaceID,
		ContactID:   saved.ID,
		ContactName: saved.Name,
		Message:     message,
	})
	if err != nil {
		return nil, "", err
	}
	return saved, conversationID, nil
}

// IntakeBooking commits a booking row, then fires the booking-created
// automation. Automation failure is logged, not returned: the primary write
// has already committed and the caller's booking must stand.
func (s *AutomationService) IntakeBooking(ctx context.Context, booking model.Booking) (*model.Booking, error) {
	workspaceID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get workspace ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	booking.WorkspaceID = workspaceID
	if err := validator.Validate(booking); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = model.BookingStatusConfirmed
	}

	if err := s.bookingRepo.Save(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	payload := model.BookingCreatedPayload{
		WorkspaceID: workspaceID,
		ContactID:   booking.ContactID,
		Service:     booking.Service,
		Date:        booking.Date,
		Time:        booking.Time,
	}
	if contact, lookupErr := s.contactRepo.FindByID(ctx, booking.ContactID); lookupErr == nil {
		payload.ContactName = contact.Name
	}
	if _, autoErr := s.OnBookingCreated(ctx, payload); autoErr != nil {
		logger.FromContext(ctx).Error("Booking-created automation failed; booking stands",
			zap.String("booking_id", booking.ID), zap.Error(autoErr))
	}

	return &booking, nil
}

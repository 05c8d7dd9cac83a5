package model

// BookingCreatedPayload is the body of a v1.bookings.created event, and also
// the request body of the booking-created automation endpoint. The booking
// row itself is committed by the caller before this fires.
type BookingCreatedPayload struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	ContactID   string `json:"contact_id" validate:"required"`
	ContactName string `json:"contact_name,omitempty"`
	Service     string `json:"service,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
}

// ContactCreatedPayload is the body of a v1.contacts.created event, and also
// the request body of the contact-created automation endpoint. Message, when
// present, is the customer's own inbound message and must be posted before
// the welcome reply.
type ContactCreatedPayload struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	ContactID   string `json:"contact_id" validate:"required"`
	ContactName string `json:"contact_name,omitempty"`
	Message     string `json:"message,omitempty"`
}

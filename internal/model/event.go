package model

import (
	"strings"
	"time"
)

// EventType represents different types of business events
type EventType string

// Common event type constants (with versioning)
const (
	V1BookingCreated EventType = "v1.bookings.created"
	V1ContactCreated EventType = "v1.contacts.created"
)

// MapToBaseEventType attempts to map an input subject (potentially with extra
// identifiers appended, e.g. "v1.bookings.created.<workspace>") back to a
// known base EventType constant. It returns the mapped EventType and true if
// successful, or an empty EventType and false if no mapping is found.
func MapToBaseEventType(input string) (EventType, bool) {
	switch EventType(input) {
	case V1BookingCreated, V1ContactCreated:
		return EventType(input), true // Direct match found
	}

	// If no direct match, try stripping the last component after the final dot.
	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	base := input[:lastDotIndex]
	switch EventType(base) {
	case V1BookingCreated:
		return V1BookingCreated, true
	case V1ContactCreated:
		return V1ContactCreated, true
	default:
		return "", false
	}
}

// GetVersion extracts the version from an event type
// Returns the version string (e.g., "v1") or an empty string if no version specified
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}
	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}
	return ""
}

// GetBaseType strips the version prefix from an event type
func (e EventType) GetBaseType() EventType {
	version := e.GetVersion()
	if version == "" {
		return e
	}
	return EventType(strings.TrimPrefix(string(e), version+"."))
}

// MessageMetadata carries JetStream delivery metadata for a consumed event
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	MessageID        string
	MessageSubject   string
	WorkspaceID      string
}

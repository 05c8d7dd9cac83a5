package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "no-show"
)

// Booking represents an appointment. Bookings are never hard-deleted in the
// normal flow; lifecycle changes are status transitions.
type Booking struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID string    `json:"workspace_id" gorm:"column:workspace_id;index;type:text" validate:"required"`
	ContactID   string    `json:"contact_id" gorm:"column:contact_id;index;type:text" validate:"required"`
	Date        string    `json:"date" gorm:"type:text"`
	Time        string    `json:"time" gorm:"type:text"`
	Service     string    `json:"service" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:text;default:confirmed"`
	Notes       string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Booking model, respecting the Namer.
func (Booking) TableName(namer schema.Namer) string {
	return namer.TableName("bookings")
}

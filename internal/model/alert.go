package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	AlertTypeLowStock          = "low_stock"
	AlertTypeOverdueForm       = "overdue_form"
	AlertTypeUnansweredMessage = "unanswered_message"
	// AlertTypeBookingReminder is part of the alert taxonomy and accepted by
	// storage, but no scanner condition produces it yet.
	AlertTypeBookingReminder = "booking_reminder"
)

// Alert is a materialized notification created by the alert scanner.
// SubjectID is the structured dedup key: the ID of the entity the condition
// fired on (inventory item, form submission, conversation). A partial unique
// index on (workspace_id, type, subject_id) over unresolved rows makes
// duplicate inserts fail cleanly instead of relying on message-text matching.
type Alert struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID string    `json:"workspace_id" gorm:"column:workspace_id;index;type:text" validate:"required"`
	Type        string    `json:"type" gorm:"type:text" validate:"required,oneof=low_stock overdue_form unanswered_message booking_reminder"`
	SubjectID   string    `json:"subject_id" gorm:"column:subject_id;type:text" validate:"required"`
	Title       string    `json:"title" gorm:"type:text"`
	Message     string    `json:"message" gorm:"type:text"`
	Link        string    `json:"link,omitempty" gorm:"type:text"`
	Resolved    bool      `json:"resolved" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Alert model, respecting the Namer.
func (Alert) TableName(namer schema.Namer) string {
	return namer.TableName("alerts")
}

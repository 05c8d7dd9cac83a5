package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

const (
	FieldTypeText     = "text"
	FieldTypeTextarea = "textarea"
	FieldTypeSelect   = "select"
	FieldTypeCheckbox = "checkbox"
)

// FormField is one entry in a form's ordered field list. Field definitions
// are stored as jsonb on the Form row.
type FormField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type" validate:"oneof=text textarea select checkbox"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// Form is a reusable template. Its shape is treated as immutable once
// submissions reference it; in-flight submissions are not migrated on edit.
type Form struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID string         `json:"workspace_id" gorm:"column:workspace_id;index;type:text" validate:"required"`
	Name        string         `json:"name" gorm:"type:text" validate:"required"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Fields      datatypes.JSON `json:"fields,omitempty" gorm:"type:jsonb;column:fields"`
	CreatedAt   time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Form model, respecting the Namer.
func (Form) TableName(namer schema.Namer) string {
	return namer.TableName("forms")
}

const (
	SubmissionStatusPending   = "pending"
	SubmissionStatusCompleted = "completed"
	SubmissionStatusOverdue   = "overdue"
)

// FormSubmission is one instance of a form sent to a contact.
// State machine: pending -> completed (contact submits) or pending -> overdue
// (time-based transition performed by the alert scanner; one-way).
type FormSubmission struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID string         `json:"workspace_id" gorm:"column:workspace_id;index;type:text" validate:"required"`
	FormID      string         `json:"form_id" gorm:"column:form_id;index;type:text" validate:"required"`
	ContactID   string         `json:"contact_id" gorm:"column:contact_id;index;type:text" validate:"required"`
	BookingID   string         `json:"booking_id,omitempty" gorm:"column:booking_id;type:text"`
	Status      string         `json:"status" gorm:"type:text;default:pending"`
	Data        datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb;column:data"`
	SentAt      time.Time      `json:"sent_at" gorm:"column:sent_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CreatedAt   time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the FormSubmission model, respecting the Namer.
func (FormSubmission) TableName(namer schema.Namer) string {
	return namer.TableName("form_submissions")
}

package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	ConversationStatusOpen     = "open"
	ConversationStatusClosed   = "closed"
	ConversationStatusArchived = "archived"
)

// Conversation is the single messaging thread for a (workspace, contact)
// pair. At most one exists per pair; that invariant is enforced by the
// ensure-before-insert path in the automation service, so callers must never
// insert conversations directly.
//
// LastMessage/LastMessageAt/UnreadCount are a denormalized cache of the
// newest message, rewritten on every append.
type Conversation struct {
	ID               string     `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID      string     `json:"workspace_id" gorm:"column:workspace_id;index:idx_conversations_workspace_contact,priority:1;type:text" validate:"required"`
	ContactID        string     `json:"contact_id" gorm:"column:contact_id;index:idx_conversations_workspace_contact,priority:2;type:text" validate:"required"`
	Subject          string     `json:"subject,omitempty" gorm:"type:text"`
	LastMessage      *string    `json:"last_message,omitempty" gorm:"column:last_message;type:text"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty" gorm:"column:last_message_at"`
	UnreadCount      int32      `json:"unread_count" gorm:"column:unread_count;default:0"`
	Status           string     `json:"status" gorm:"type:text;default:open"`
	AutomationPaused bool       `json:"automation_paused" gorm:"column:automation_paused;default:false"`
	CreatedAt        time.Time  `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the Conversation model, respecting the Namer.
func (Conversation) TableName(namer schema.Namer) string {
	return namer.TableName("conversations")
}

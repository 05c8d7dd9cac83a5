package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	SenderAdmin   = "admin"
	SenderContact = "contact"
)

// Message is one chat entry in a conversation. Messages are append-only and
// immutable once created.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID    string    `json:"workspace_id" gorm:"column:workspace_id;index;type:text" validate:"required"`
	ContactID      string    `json:"contact_id" gorm:"column:contact_id;index;type:text" validate:"required"`
	ConversationID string    `json:"conversation_id" gorm:"column:conversation_id;index;type:text" validate:"required"`
	Content        string    `json:"content" gorm:"type:text"`
	Sender         string    `json:"sender" gorm:"type:text" validate:"required,oneof=admin contact"`
	CreatedAt      time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Message model, respecting the Namer.
func (Message) TableName(namer schema.Namer) string {
	return namer.TableName("messages")
}

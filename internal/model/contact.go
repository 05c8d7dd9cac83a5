package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Contact represents a customer or lead within a workspace.
// Email is the natural dedup key: intake paths upsert by
// (workspace_id, email) instead of merging identities later.
type Contact struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID string    `json:"workspace_id" gorm:"column:workspace_id;index;uniqueIndex:idx_contacts_workspace_email,priority:1;type:text" validate:"required"`
	Name        string    `json:"name" gorm:"type:text" validate:"required"`
	Email       string    `json:"email" gorm:"type:text;uniqueIndex:idx_contacts_workspace_email,priority:2" validate:"required,email"`
	Phone       string    `json:"phone,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Contact model, respecting the Namer.
func (Contact) TableName(namer schema.Namer) string {
	return namer.TableName("contacts")
}

package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// InventoryItem is a stocked good. The low-stock condition holds when
// quantity <= min_quantity.
type InventoryItem struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	WorkspaceID string    `json:"workspace_id" gorm:"column:workspace_id;index;type:text" validate:"required"`
	Name        string    `json:"name" gorm:"type:text" validate:"required"`
	Category    string    `json:"category,omitempty" gorm:"type:text"`
	Quantity    int       `json:"quantity" gorm:"column:quantity;default:0" validate:"gte=0"`
	MinQuantity int       `json:"min_quantity" gorm:"column:min_quantity;default:0" validate:"gte=0"`
	Unit        string    `json:"unit,omitempty" gorm:"type:text"`
	CostPerUnit float64   `json:"cost_per_unit,omitempty" gorm:"column:cost_per_unit"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the InventoryItem model, respecting the Namer.
func (InventoryItem) TableName(namer schema.Namer) string {
	return namer.TableName("inventory")
}

// IsLowStock reports whether the item is at or below its reorder threshold.
func (i *InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.MinQuantity
}

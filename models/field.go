package models

import "time"

// Item variants a field definition can be scoped to.
const (
	VariantGraded   = "graded"
	VariantUngraded = "ungraded"
	VariantAny      = "any"
)

type FieldDefinition struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CategoryID   uint      `gorm:"index:idx_category_field_name,unique" json:"category_id"`
	Name         string    `gorm:"index:idx_category_field_name,unique;not null" json:"name" validate:"required"`
	Label        string    `json:"label"`
	Required     bool      `gorm:"default:false" json:"required"`
	Priority     int       `gorm:"default:0" json:"priority"`
	MarkAsTitle  bool      `gorm:"default:false" json:"mark_as_title"`
	ShowOnDetail bool      `json:"show_on_detail"`
	MarkForPopup bool      `gorm:"default:false" json:"mark_for_popup"`
	Guidance     string    `json:"guidance"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FieldVariantScope narrows a field definition to graded-only or
// ungraded-only items. A field with no scope row applies to both.
type FieldVariantScope struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CategoryID uint      `gorm:"index" json:"category_id"`
	FieldName  string    `gorm:"not null" json:"field_name" validate:"required"`
	Variant    string    `gorm:"not null" json:"variant" validate:"required,oneof=graded ungraded"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

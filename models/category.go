package models

import "time"

type Category struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Slug            string            `gorm:"uniqueIndex;not null" json:"slug" validate:"required"`
	Name            string            `gorm:"not null" json:"name" validate:"required"`
	Description     string            `json:"description"`
	DisplayPriority int               `gorm:"default:0" json:"display_priority"`
	Active          bool              `json:"active"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	Fields          []FieldDefinition `gorm:"foreignKey:CategoryID" json:"fields,omitempty"`
	Items           []CatalogItem     `gorm:"foreignKey:CategoryID" json:"items,omitempty"`
}

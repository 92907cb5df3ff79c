package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Name      string        `json:"name" gorm:"default:null"`
	Email     string        `gorm:"uniqueIndex" json:"email"`
	Password  string        `json:"-"`
	Role      string        `gorm:"default:user" json:"role"`
	Token     string        `gorm:"index" json:"-"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	Items     []CatalogItem `gorm:"foreignKey:OwnerID" json:"items,omitempty"`
}

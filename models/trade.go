package models

import "time"

const (
	TradeStatusPending   = "pending"
	TradeStatusCompleted = "completed"
	TradeStatusCancelled = "cancelled"
)

type Trade struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	ItemID    uint        `gorm:"index;not null" json:"item_id" validate:"required"`
	SellerID  uint        `gorm:"index" json:"seller_id"`
	BuyerID   uint        `gorm:"index" json:"buyer_id" validate:"required"`
	Price     float64     `json:"price"`
	Status    string      `gorm:"default:pending" json:"status"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Item      CatalogItem `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

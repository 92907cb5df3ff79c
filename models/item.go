package models

import "time"

// CatalogItem lifecycle states.
const (
	ItemStatusDraft     = "draft"
	ItemStatusListed    = "listed"
	ItemStatusSold      = "sold"
	ItemStatusWithdrawn = "withdrawn"
	ItemStatusExpired   = "expired"
)

type CatalogItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CategoryID     uint            `gorm:"index;not null" json:"category_id" validate:"required"`
	OwnerID        uint            `gorm:"index" json:"owner_id"`
	Title          string          `json:"title"`
	Price          float64         `json:"price" validate:"required"`
	Condition      string          `json:"condition"`
	Graded         bool            `json:"graded"`
	Status         string          `gorm:"index;default:draft" json:"status"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	IdempotencyKey string          `gorm:"index" json:"-"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Category       Category        `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Owner          User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Attributes     []ItemAttribute `gorm:"foreignKey:ItemID" json:"attributes,omitempty"`
}

// ItemAttribute is one entry of an item's dynamic attribute bag,
// keyed by the owning category's field definition name.
type ItemAttribute struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ItemID    uint      `gorm:"index:idx_item_attr_name,unique" json:"item_id"`
	Name      string    `gorm:"index:idx_item_attr_name,unique;not null" json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Variant reports which field variant scope applies to the item.
func (i *CatalogItem) Variant() string {
	if i.Graded {
		return VariantGraded
	}
	return VariantUngraded
}

// AttributeMap flattens the loaded attribute rows into a bag.
func (i *CatalogItem) AttributeMap() map[string]string {
	bag := make(map[string]string, len(i.Attributes))
	for _, attr := range i.Attributes {
		bag[attr.Name] = attr.Value
	}
	return bag
}

package routes

import (
	"cardmart/db"
	"cardmart/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type tradeRequest struct {
	ItemID uint `json:"item_id" validate:"required"`
}

// CreateTrade - POST /trades. The buyer is the caller; the item must
// be listed and cannot be the buyer's own.
func createTrade(c *fiber.Ctx) error {
	buyer := callerFromLocals(c)

	req := new(tradeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "item_id is required",
		})
	}

	var item models.CatalogItem
	if err := db.DB.First(&item, req.ItemID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Item not found",
		})
	}
	if item.Status != models.ItemStatusListed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Item is not listed",
		})
	}
	if item.OwnerID == buyer.ID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot trade your own item",
		})
	}

	trade := models.Trade{
		ItemID:   item.ID,
		SellerID: item.OwnerID,
		BuyerID:  buyer.ID,
		Price:    item.Price,
		Status:   models.TradeStatusCompleted,
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trade).Error; err != nil {
			return err
		}
		return tx.Model(&item).Update("status", models.ItemStatusSold).Error
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create trade",
		})
	}

	BroadcastItemEvent("item.sold", item.ID)

	return c.Status(fiber.StatusCreated).JSON(trade)
}

// GetTrade - GET /trades/:id. Visible to its participants and admins.
func getTrade(c *fiber.Ctx) error {
	var trade models.Trade
	if err := db.DB.Preload("Item").First(&trade, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Trade not found",
		})
	}

	caller := callerFromLocals(c)
	if caller.ID != trade.BuyerID && caller.ID != trade.SellerID && caller.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"kind":  "forbidden",
			"error": "forbidden",
		})
	}

	return c.JSON(trade)
}

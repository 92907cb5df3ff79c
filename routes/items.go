package routes

import (
	"time"

	"cardmart/catalog"
	"cardmart/db"
	"cardmart/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Query parameters with fixed meaning; everything else on
// GET /catalog-items is treated as a dynamic attribute filter.
var reservedItemParams = map[string]bool{
	"category_id": true,
	"owner_id":    true,
	"status":      true,
	"sort":        true,
	"page":        true,
	"page_size":   true,
}

// SearchItems - GET /catalog-items
func searchItems(c *fiber.Ctx) error {
	filter := catalog.Filter{
		CategoryID: uint(c.QueryInt("category_id", 0)),
		OwnerID:    uint(c.QueryInt("owner_id", 0)),
		Status:     c.Query("status"),
		Sort:       c.Query("sort"),
		Page:       c.QueryInt("page", 1),
		PageSize:   c.QueryInt("page_size", 0),
	}

	if user := callerFromLocals(c); user != nil {
		filter.Viewer = catalog.Viewer{ID: user.ID, Admin: user.Role == models.RoleAdmin}
	}

	dynamic := map[string]string{}
	for key, value := range c.Queries() {
		if !reservedItemParams[key] {
			dynamic[key] = value
		}
	}
	if len(dynamic) > 0 {
		filter.Dynamic = dynamic
	}

	result, err := engine.Search(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetItem - GET /catalog-items/:id
func getItem(c *fiber.Ctx) error {
	var item models.CatalogItem
	if err := db.DB.Preload("Category").Preload("Attributes").
		First(&item, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Item not found",
		})
	}

	if item.Status != models.ItemStatusListed && !mayManage(c, &item) {
		// Hidden states look like absent items to everyone else.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Item not found",
		})
	}

	projection, err := attrs.Project(c.Context(), item.CategoryID, item.Variant(), item.AttributeMap())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"item":   item,
		"title":  projection.Title,
		"detail": projection.Fields,
	})
}

type itemRequest struct {
	CategoryID uint              `json:"category_id" validate:"required"`
	Price      float64           `json:"price" validate:"required"`
	Condition  string            `json:"condition"`
	Graded     bool              `json:"graded"`
	Status     string            `json:"status" validate:"omitempty,oneof=draft listed"`
	ExpiresAt  *time.Time        `json:"expires_at"`
	Attributes map[string]string `json:"attributes"`
}

// CreateItem - POST /catalog-items. Honors an Idempotency-Key header:
// a repeated key from the same owner returns the first item unchanged.
func createItem(c *fiber.Ctx) error {
	user := callerFromLocals(c)

	req := new(itemRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "category_id and price are required; status must be draft or listed",
		})
	}

	if key := c.Get("Idempotency-Key"); key != "" {
		var existing models.CatalogItem
		if err := db.DB.Preload("Attributes").
			Where("idempotency_key = ? AND owner_id = ?", key, user.ID).
			First(&existing).Error; err == nil {
			return c.JSON(existing)
		}
	}

	shaped, err := attrs.ValidateAndShape(c.Context(), req.CategoryID, variantOf(req.Graded), req.Attributes)
	if err != nil {
		return respondError(c, err)
	}

	status := req.Status
	if status == "" {
		status = models.ItemStatusDraft
	}

	item := models.CatalogItem{
		CategoryID:     req.CategoryID,
		OwnerID:        user.ID,
		Price:          req.Price,
		Condition:      req.Condition,
		Graded:         req.Graded,
		Status:         status,
		ExpiresAt:      req.ExpiresAt,
		IdempotencyKey: c.Get("Idempotency-Key"),
	}

	projection, err := attrs.Project(c.Context(), req.CategoryID, variantOf(req.Graded), shaped)
	if err != nil {
		return respondError(c, err)
	}
	item.Title = projection.Title

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return createAttributeRows(tx, item.ID, shaped)
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create item",
		})
	}

	if item.Status == models.ItemStatusListed {
		BroadcastItemEvent("item.listed", item.ID)
	}

	db.DB.Preload("Attributes").First(&item, item.ID)
	return c.Status(fiber.StatusCreated).JSON(item)
}

type itemPatch struct {
	Price      *float64          `json:"price"`
	Condition  *string           `json:"condition"`
	Graded     *bool             `json:"graded"`
	Status     *string           `json:"status"`
	ExpiresAt  *time.Time        `json:"expires_at"`
	CategoryID *uint             `json:"category_id"`
	Attributes map[string]string `json:"attributes"`
}

// Legal item status transitions.
var itemTransitions = map[string][]string{
	models.ItemStatusDraft:  {models.ItemStatusListed},
	models.ItemStatusListed: {models.ItemStatusSold, models.ItemStatusWithdrawn, models.ItemStatusExpired},
}

func transitionAllowed(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PatchItem - PATCH /catalog-items/:id. Owner (or admin) only; the
// category is immutable after creation since changing it would
// invalidate the attribute bag.
func patchItem(c *fiber.Ctx) error {
	var item models.CatalogItem
	if err := db.DB.Preload("Attributes").First(&item, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Item not found",
		})
	}

	if !mayManage(c, &item) {
		return respondError(c, catalog.ErrForbidden)
	}

	patch := new(itemPatch)
	if err := c.BodyParser(patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	if patch.CategoryID != nil && *patch.CategoryID != item.CategoryID {
		return respondError(c, catalog.ValidationErrors{{
			Field:   "category_id",
			Code:    catalog.CodeImmutableField,
			Message: "category cannot change after creation",
		}})
	}

	oldStatus := item.Status
	newStatus := item.Status
	if patch.Status != nil {
		if !transitionAllowed(item.Status, *patch.Status) {
			return respondError(c, catalog.ValidationErrors{{
				Field:   "status",
				Code:    "invalid_transition",
				Message: "cannot move from " + item.Status + " to " + *patch.Status,
			}})
		}
		newStatus = *patch.Status
	}

	graded := item.Graded
	if patch.Graded != nil {
		graded = *patch.Graded
	}

	// Changed attributes are merged over the stored bag and the merge
	// is re-validated as a whole against the current schema.
	bag := item.AttributeMap()
	for name, value := range patch.Attributes {
		bag[name] = value
	}
	shaped, err := attrs.ValidateAndShape(c.Context(), item.CategoryID, variantOf(graded), bag)
	if err != nil {
		return respondError(c, err)
	}

	projection, err := attrs.Project(c.Context(), item.CategoryID, variantOf(graded), shaped)
	if err != nil {
		return respondError(c, err)
	}

	updates := map[string]interface{}{
		"graded": graded,
		"status": newStatus,
		"title":  projection.Title,
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.Condition != nil {
		updates["condition"] = *patch.Condition
	}
	if patch.ExpiresAt != nil {
		updates["expires_at"] = *patch.ExpiresAt
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", item.ID).Delete(&models.ItemAttribute{}).Error; err != nil {
			return err
		}
		return createAttributeRows(tx, item.ID, shaped)
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update item",
		})
	}

	if newStatus != oldStatus {
		BroadcastItemEvent("item."+newStatus, item.ID)
	}

	db.DB.Preload("Attributes").First(&item, item.ID)
	return c.JSON(item)
}

// DeleteItem - DELETE /catalog-items/:id. Items referenced by trades
// are withdrawn instead of removed.
func deleteItem(c *fiber.Ctx) error {
	var item models.CatalogItem
	if err := db.DB.First(&item, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Item not found",
		})
	}

	if !mayManage(c, &item) {
		return respondError(c, catalog.ErrForbidden)
	}

	var tradeCount int64
	db.DB.Model(&models.Trade{}).Where("item_id = ?", item.ID).Count(&tradeCount)
	if tradeCount > 0 {
		if err := db.DB.Model(&item).Update("status", models.ItemStatusWithdrawn).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to withdraw item",
			})
		}
		BroadcastItemEvent("item.withdrawn", item.ID)
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Item withdrawn (referenced by trades)",
		})
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", item.ID).Delete(&models.ItemAttribute{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete item",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Item deleted successfully",
	})
}

func variantOf(graded bool) string {
	if graded {
		return models.VariantGraded
	}
	return models.VariantUngraded
}

// mayManage reports whether the caller owns the item or is an admin.
func mayManage(c *fiber.Ctx, item *models.CatalogItem) bool {
	user := callerFromLocals(c)
	if user == nil {
		return false
	}
	return user.ID == item.OwnerID || user.Role == models.RoleAdmin
}

func createAttributeRows(tx *gorm.DB, itemID uint, bag map[string]string) error {
	for name, value := range bag {
		row := models.ItemAttribute{ItemID: itemID, Name: name, Value: value}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

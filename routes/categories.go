package routes

import (
	"strconv"

	"cardmart/catalog"
	"cardmart/db"
	"cardmart/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CategoryListResponse struct {
	Categories []models.Category `json:"categories"`
	Total      int               `json:"total"`
}

// findCategory loads a category by numeric id or slug.
func findCategory(idOrSlug string) (*models.Category, error) {
	var category models.Category
	if id, err := strconv.Atoi(idOrSlug); err == nil {
		if err := db.DB.First(&category, id).Error; err != nil {
			return nil, err
		}
		return &category, nil
	}
	if err := db.DB.Where("slug = ?", idOrSlug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// GetAllCategories - GET /categories
func getAllCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := db.DB.Where("active = ?", true).
		Order("display_priority ASC, name ASC").
		Find(&categories).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get categories",
		})
	}

	return c.JSON(CategoryListResponse{
		Categories: categories,
		Total:      len(categories),
	})
}

// GetCategory - GET /categories/:id (id or slug)
func getCategory(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}
	return c.JSON(category)
}

type categoryRequest struct {
	Slug            string `json:"slug" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	DisplayPriority int    `json:"display_priority"`
	Active          *bool  `json:"active"`
}

func createCategory(c *fiber.Ctx) error {
	req := new(categoryRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Slug and name are required",
		})
	}

	var count int64
	db.DB.Model(&models.Category{}).Where("slug = ?", req.Slug).Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Slug already in use",
		})
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	category := &models.Category{
		Slug:            req.Slug,
		Name:            req.Name,
		Description:     req.Description,
		DisplayPriority: req.DisplayPriority,
		Active:          active,
	}

	if err := db.DB.Create(category).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create category",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(category)
}

type categoryPatch struct {
	Slug            *string `json:"slug"`
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	DisplayPriority *int    `json:"display_priority"`
	Active          *bool   `json:"active"`
}

// UpdateCategory - PUT /categories/:id. The slug is frozen once any
// catalog item references the category.
func updateCategory(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}

	patch := new(categoryPatch)
	if err := c.BodyParser(patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	updates := map[string]interface{}{}
	if patch.Slug != nil && *patch.Slug != category.Slug {
		var itemCount int64
		db.DB.Model(&models.CatalogItem{}).Where("category_id = ?", category.ID).Count(&itemCount)
		if itemCount > 0 {
			return respondError(c, catalog.ValidationErrors{{
				Field:   "slug",
				Code:    catalog.CodeImmutableField,
				Message: "slug cannot change while items reference this category",
			}})
		}
		updates["slug"] = *patch.Slug
	}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.DisplayPriority != nil {
		updates["display_priority"] = *patch.DisplayPriority
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}

	if len(updates) > 0 {
		if err := db.DB.Model(category).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update category",
			})
		}
		resolver.Invalidate(category.ID)
	}

	return c.JSON(category)
}

// DeleteCategory - DELETE /categories/:id. Refused while items
// reference the category.
func deleteCategory(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}

	var itemCount int64
	db.DB.Model(&models.CatalogItem{}).Where("category_id = ?", category.ID).Count(&itemCount)
	if itemCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Category still has catalog items",
		})
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", category.ID).Delete(&models.FieldDefinition{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", category.ID).Delete(&models.FieldVariantScope{}).Error; err != nil {
			return err
		}
		return tx.Delete(category).Error
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete category",
		})
	}
	resolver.Invalidate(category.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Category deleted successfully",
	})
}

package routes

import (
	"cardmart/catalog"
	"cardmart/db"
	"cardmart/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetCategoryFields - GET /categories/:id/fields?variant=graded|ungraded|any
func getCategoryFields(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}

	variant := c.Query("variant", models.VariantAny)
	fields, err := resolver.Resolve(c.Context(), category.ID, variant)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"category_id": category.ID,
		"variant":     variant,
		"fields":      fields,
	})
}

type fieldRequest struct {
	Name         string `json:"name" validate:"required"`
	Label        string `json:"label"`
	Required     bool   `json:"required"`
	Priority     int    `json:"priority"`
	MarkAsTitle  bool   `json:"mark_as_title"`
	ShowOnDetail *bool  `json:"show_on_detail"`
	MarkForPopup bool   `json:"mark_for_popup"`
	Guidance     string `json:"guidance"`
	// Variant restricts the field to graded or ungraded items;
	// empty means it applies to both.
	Variant string `json:"variant" validate:"omitempty,oneof=graded ungraded"`
}

func createField(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}

	req := new(fieldRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field name is required and variant must be graded or ungraded",
		})
	}

	var count int64
	db.DB.Model(&models.FieldDefinition{}).
		Where("category_id = ? AND name = ?", category.ID, req.Name).Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field name already exists in this category",
		})
	}

	if req.MarkAsTitle {
		if err := rejectSecondTitle(category.ID, 0); err != nil {
			return respondError(c, err)
		}
	}

	showOnDetail := true
	if req.ShowOnDetail != nil {
		showOnDetail = *req.ShowOnDetail
	}

	field := models.FieldDefinition{
		CategoryID:   category.ID,
		Name:         req.Name,
		Label:        req.Label,
		Required:     req.Required,
		Priority:     req.Priority,
		MarkAsTitle:  req.MarkAsTitle,
		ShowOnDetail: showOnDetail,
		MarkForPopup: req.MarkForPopup,
		Guidance:     req.Guidance,
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&field).Error; err != nil {
			return err
		}
		if req.Variant != "" {
			return tx.Create(&models.FieldVariantScope{
				CategoryID: category.ID,
				FieldName:  field.Name,
				Variant:    req.Variant,
			}).Error
		}
		return nil
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create field",
		})
	}
	resolver.Invalidate(category.ID)

	return c.Status(fiber.StatusCreated).JSON(field)
}

type fieldPatch struct {
	Name         *string `json:"name"`
	Label        *string `json:"label"`
	Required     *bool   `json:"required"`
	Priority     *int    `json:"priority"`
	MarkAsTitle  *bool   `json:"mark_as_title"`
	ShowOnDetail *bool   `json:"show_on_detail"`
	MarkForPopup *bool   `json:"mark_for_popup"`
	Guidance     *string `json:"guidance"`
	// "graded", "ungraded", or "any" to clear the scope.
	Variant *string `json:"variant"`
}

func updateField(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}

	var field models.FieldDefinition
	if err := db.DB.Where("category_id = ?", category.ID).
		First(&field, c.Params("fieldId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Field not found",
		})
	}

	patch := new(fieldPatch)
	if err := c.BodyParser(patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	if patch.MarkAsTitle != nil && *patch.MarkAsTitle && !field.MarkAsTitle {
		if err := rejectSecondTitle(category.ID, field.ID); err != nil {
			return respondError(c, err)
		}
	}

	oldName := field.Name
	updates := map[string]interface{}{}
	if patch.Name != nil && *patch.Name != field.Name {
		var count int64
		db.DB.Model(&models.FieldDefinition{}).
			Where("category_id = ? AND name = ?", category.ID, *patch.Name).Count(&count)
		if count > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Field name already exists in this category",
			})
		}
		updates["name"] = *patch.Name
	}
	if patch.Label != nil {
		updates["label"] = *patch.Label
	}
	if patch.Required != nil {
		updates["required"] = *patch.Required
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.MarkAsTitle != nil {
		updates["mark_as_title"] = *patch.MarkAsTitle
	}
	if patch.ShowOnDetail != nil {
		updates["show_on_detail"] = *patch.ShowOnDetail
	}
	if patch.MarkForPopup != nil {
		updates["mark_for_popup"] = *patch.MarkForPopup
	}
	if patch.Guidance != nil {
		updates["guidance"] = *patch.Guidance
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&field).Updates(updates).Error; err != nil {
				return err
			}
		}
		if newName, ok := updates["name"].(string); ok {
			// Keep scope rows and stored attributes keyed by the new name.
			if err := tx.Model(&models.FieldVariantScope{}).
				Where("category_id = ? AND field_name = ?", category.ID, oldName).
				Update("field_name", newName).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ItemAttribute{}).
				Where("name = ? AND item_id IN (?)", oldName,
					tx.Model(&models.CatalogItem{}).Select("id").Where("category_id = ?", category.ID)).
				Update("name", newName).Error; err != nil {
				return err
			}
		}
		if patch.Variant != nil {
			name := oldName
			if newName, ok := updates["name"].(string); ok {
				name = newName
			}
			if err := tx.Where("category_id = ? AND field_name = ?", category.ID, name).
				Delete(&models.FieldVariantScope{}).Error; err != nil {
				return err
			}
			if *patch.Variant == models.VariantGraded || *patch.Variant == models.VariantUngraded {
				return tx.Create(&models.FieldVariantScope{
					CategoryID: category.ID,
					FieldName:  name,
					Variant:    *patch.Variant,
				}).Error
			}
		}
		return nil
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update field",
		})
	}
	resolver.Invalidate(category.ID)

	return c.JSON(field)
}

func deleteField(c *fiber.Ctx) error {
	category, err := findCategory(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Category not found",
		})
	}

	var field models.FieldDefinition
	if err := db.DB.Where("category_id = ?", category.ID).
		First(&field, c.Params("fieldId")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "Field not found",
		})
	}

	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ? AND field_name = ?", category.ID, field.Name).
			Delete(&models.FieldVariantScope{}).Error; err != nil {
			return err
		}
		return tx.Delete(&field).Error
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete field",
		})
	}
	resolver.Invalidate(category.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Field deleted successfully",
	})
}

// rejectSecondTitle enforces the one-title-field-per-category rule.
func rejectSecondTitle(categoryID, excludeFieldID uint) error {
	var existing models.FieldDefinition
	q := db.DB.Where("category_id = ? AND mark_as_title = ?", categoryID, true)
	if excludeFieldID != 0 {
		q = q.Where("id <> ?", excludeFieldID)
	}
	if err := q.First(&existing).Error; err != nil {
		return nil
	}
	return catalog.ValidationErrors{{
		Field:   existing.Name,
		Code:    catalog.CodeDuplicateTitleField,
		Message: "category already has a title field",
	}}
}

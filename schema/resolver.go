package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"cardmart/models"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownVariant  = errors.New("unknown variant")
)

// Resolver produces the effective ordered field schema for a category
// and item variant. It is the single source of truth for which dynamic
// fields exist on an item; attribute validation, detail rendering and
// search filtering all go through it.
type Resolver struct {
	db    *gorm.DB
	cache *Cache
}

func NewResolver(db *gorm.DB, cacheTTL time.Duration) *Resolver {
	return &Resolver{db: db, cache: NewCache(cacheTTL)}
}

// Resolve returns the field definitions that apply to the given
// category and variant, ordered by priority then name. A definition
// applies when it has no variant scope row, or when a scope row
// matches the requested variant. VariantAny matches every definition.
func (r *Resolver) Resolve(ctx context.Context, categoryID uint, variant string) ([]models.FieldDefinition, error) {
	switch variant {
	case models.VariantGraded, models.VariantUngraded, models.VariantAny:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	if fields, ok := r.cache.Get(categoryID, variant); ok {
		return fields, nil
	}

	fields, err := r.load(ctx, categoryID, variant)
	if err != nil {
		return nil, err
	}
	r.cache.Put(categoryID, variant, fields)
	return fields, nil
}

// Invalidate must be called after any category or field-definition
// edit so the next Resolve sees fresh rows.
func (r *Resolver) Invalidate(categoryID uint) {
	r.cache.Invalidate(categoryID)
}

func (r *Resolver) load(ctx context.Context, categoryID uint, variant string) ([]models.FieldDefinition, error) {
	db := r.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("look up category: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCategory, categoryID)
	}

	var defs []models.FieldDefinition
	if err := db.Where("category_id = ?", categoryID).Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("load field definitions: %w", err)
	}

	var scopes []models.FieldVariantScope
	if err := db.Where("category_id = ?", categoryID).Find(&scopes).Error; err != nil {
		return nil, fmt.Errorf("load variant scopes: %w", err)
	}

	scopeByField := make(map[string]string, len(scopes))
	for _, scope := range scopes {
		scopeByField[scope.FieldName] = scope.Variant
	}

	resolved := make([]models.FieldDefinition, 0, len(defs))
	for _, def := range defs {
		scoped, ok := scopeByField[def.Name]
		if !ok || variant == models.VariantAny || scoped == variant {
			resolved = append(resolved, def)
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].Priority != resolved[j].Priority {
			return resolved[i].Priority < resolved[j].Priority
		}
		return resolved[i].Name < resolved[j].Name
	})

	return resolved, nil
}

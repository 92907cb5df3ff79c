package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cardmart/models"
	"cardmart/schema"
)

// Sort keys accepted by Search.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Viewer identifies the caller for visibility checks.
type Viewer struct {
	ID    uint
	Admin bool
}

// Filter describes one catalog search.
type Filter struct {
	CategoryID uint
	OwnerID    uint
	Status     string
	Dynamic    map[string]string
	Sort       string
	Page       int
	PageSize   int
	Viewer     Viewer
}

// Result is one page of matching items plus the total count computed
// from the same predicate.
type Result struct {
	Items    []models.CatalogItem `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// Engine answers listing and search requests over catalog items,
// combining fixed columns with dynamic attribute predicates.
type Engine struct {
	db       *gorm.DB
	resolver *schema.Resolver
}

func NewEngine(db *gorm.DB, resolver *schema.Resolver) *Engine {
	return &Engine{db: db, resolver: resolver}
}

// Search runs the filter and returns one page of items. Reads are
// retried once on a transient store error; domain errors propagate
// immediately.
func (e *Engine) Search(ctx context.Context, f Filter) (*Result, error) {
	result, err := e.search(ctx, f)
	if err == nil || isDomainError(err) {
		return result, err
	}

	time.Sleep(100 * time.Millisecond)
	result, err = e.search(ctx, f)
	if err != nil && !isDomainError(err) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return result, err
}

func (e *Engine) search(ctx context.Context, f Filter) (*Result, error) {
	if len(f.Dynamic) > 0 && f.CategoryID == 0 {
		return nil, fmt.Errorf("%w: dynamic filters require a category_id", ErrInvalidFilter)
	}

	order, err := orderClause(f.Sort)
	if err != nil {
		return nil, err
	}

	status := f.Status
	if status == "" {
		status = models.ItemStatusListed
	}
	if status != models.ItemStatusListed && !f.Viewer.Admin {
		// Non-listed states are only visible to an owner browsing
		// their own items.
		if f.OwnerID == 0 || f.OwnerID != f.Viewer.ID {
			return nil, fmt.Errorf("%w: status %q requires owner or admin scope", ErrForbidden, status)
		}
	}

	q := e.db.WithContext(ctx).Model(&models.CatalogItem{})
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	} else {
		q = q.Where("category_id IN (?)",
			e.db.Model(&models.Category{}).Select("id").Where("active = ?", true))
	}
	if f.OwnerID != 0 {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if status != "all" {
		q = q.Where("status = ?", status)
	}

	if len(f.Dynamic) > 0 {
		defs, err := e.resolver.Resolve(ctx, f.CategoryID, models.VariantAny)
		if err != nil {
			return nil, err
		}
		known := make(map[string]bool, len(defs))
		for _, def := range defs {
			known[def.Name] = true
		}
		for name, value := range f.Dynamic {
			if !known[name] {
				// Stale clients may still send removed fields.
				continue
			}
			q = q.Where("id IN (SELECT item_id FROM item_attributes WHERE name = ? AND value = ?)", name, value)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var items []models.CatalogItem
	if err := q.Preload("Attributes").Order(order).
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}

	return &Result{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func orderClause(sortKey string) (string, error) {
	switch sortKey {
	case "", SortNewest:
		return "created_at DESC, id DESC", nil
	case SortPriceAsc:
		return "price ASC, id ASC", nil
	case SortPriceDesc:
		return "price DESC, id DESC", nil
	default:
		return "", fmt.Errorf("%w: unsupported sort %q", ErrInvalidFilter, sortKey)
	}
}

func isDomainError(err error) bool {
	var verrs ValidationErrors
	return errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, schema.ErrUnknownCategory) ||
		errors.Is(err, schema.ErrUnknownVariant) ||
		errors.As(err, &verrs)
}

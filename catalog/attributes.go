package catalog

import (
	"context"
	"fmt"
	"strings"

	"cardmart/models"
	"cardmart/schema"
)

// Store validates and projects an item's dynamic attribute bag against
// the category's resolved schema.
type Store struct {
	resolver *schema.Resolver
}

func NewStore(resolver *schema.Resolver) *Store {
	return &Store{resolver: resolver}
}

// ValidateAndShape checks raw attributes against the resolved schema
// for the category and variant. Missing required fields are collected
// into a single ValidationErrors result rather than failing fast.
// Keys not present in the schema are dropped silently so older clients
// sending stale fields keep working.
func (s *Store) ValidateAndShape(ctx context.Context, categoryID uint, variant string, raw map[string]string) (map[string]string, error) {
	defs, err := s.resolver.Resolve(ctx, categoryID, variant)
	if err != nil {
		return nil, err
	}

	var errs ValidationErrors
	if title := duplicateTitleField(defs); title != "" {
		errs = append(errs, FieldError{
			Field:   title,
			Code:    CodeDuplicateTitleField,
			Message: fmt.Sprintf("category %d marks more than one field as title", categoryID),
		})
	}

	shaped := make(map[string]string, len(defs))
	for _, def := range defs {
		value, ok := raw[def.Name]
		if !ok || strings.TrimSpace(value) == "" {
			if def.Required {
				errs = append(errs, missingRequired(def.Name))
			}
			continue
		}
		shaped[def.Name] = value
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return shaped, nil
}

// ProjectedField pairs a field definition with the item's stored value.
type ProjectedField struct {
	Field models.FieldDefinition `json:"field"`
	Value string                 `json:"value"`
}

// Projection is the display-ready view of an item's attribute bag.
type Projection struct {
	Title  string           `json:"title"`
	Fields []ProjectedField `json:"fields"`
}

// Project orders stored attributes for detail rendering. Fields with
// show_on_detail=false are excluded; the title-marked field's value is
// surfaced separately.
func (s *Store) Project(ctx context.Context, categoryID uint, variant string, stored map[string]string) (*Projection, error) {
	defs, err := s.resolver.Resolve(ctx, categoryID, variant)
	if err != nil {
		return nil, err
	}

	proj := &Projection{}
	for _, def := range defs {
		value, ok := stored[def.Name]
		if !ok {
			continue
		}
		if def.MarkAsTitle && proj.Title == "" {
			proj.Title = value
		}
		if !def.ShowOnDetail {
			continue
		}
		proj.Fields = append(proj.Fields, ProjectedField{Field: def, Value: value})
	}
	return proj, nil
}

// duplicateTitleField returns the name of the second title-marked
// field, or "" when the invariant holds.
func duplicateTitleField(defs []models.FieldDefinition) string {
	seen := false
	for _, def := range defs {
		if !def.MarkAsTitle {
			continue
		}
		if seen {
			return def.Name
		}
		seen = true
	}
	return ""
}

package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cardmart/catalog"
	"cardmart/db"
	"cardmart/models"
	"cardmart/routes"
	"cardmart/schema"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))
	db.DB = gdb

	resolver := schema.NewResolver(gdb, time.Minute)
	store := catalog.NewStore(resolver)
	engine := catalog.NewEngine(gdb, resolver)

	app := fiber.New()
	routes.SetupRoutes(app, resolver, store, engine)
	return app
}

func createTestUser(t *testing.T, role string) models.User {
	t.Helper()
	user := models.User{
		Name:     "Test " + role,
		Email:    fmt.Sprintf("%s-%s@example.com", role, uuid.New().String()[:8]),
		Password: "secret",
		Role:     role,
		Token:    uuid.New().String(),
	}
	require.NoError(t, db.DB.Create(&user).Error)
	return user
}

func seedTradingCards(t *testing.T) models.Category {
	t.Helper()
	category := models.Category{Slug: "trading-cards", Name: "Trading Cards", Active: true}
	require.NoError(t, db.DB.Create(&category).Error)

	fields := []models.FieldDefinition{
		{CategoryID: category.ID, Name: "grade", Required: true, Priority: 1, MarkAsTitle: true, ShowOnDetail: true},
		{CategoryID: category.ID, Name: "autograph", Priority: 2, ShowOnDetail: true},
	}
	for i := range fields {
		require.NoError(t, db.DB.Create(&fields[i]).Error)
	}
	require.NoError(t, db.DB.Create(&models.FieldVariantScope{
		CategoryID: category.ID, FieldName: "autograph", Variant: models.VariantGraded,
	}).Error)
	return category
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestListCategoriesOnlyActive(t *testing.T) {
	app := setupApp(t)
	seedTradingCards(t)
	require.NoError(t, db.DB.Create(&models.Category{Slug: "coins", Name: "Coins", Active: false}).Error)

	resp, body := doJSON(t, app, http.MethodGet, "/api/categories", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["total"])
}

func TestGetCategoryBySlug(t *testing.T) {
	app := setupApp(t)
	seedTradingCards(t)

	resp, body := doJSON(t, app, http.MethodGet, "/api/categories/trading-cards", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Trading Cards", body["name"])

	resp, _ = doJSON(t, app, http.MethodGet, "/api/categories/stamps", "", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCategoryFieldsByVariant(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)

	resp, body := doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/api/categories/%d/fields?variant=ungraded", category.ID), "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fields := body["fields"].([]interface{})
	require.Len(t, fields, 1)
	require.Equal(t, "grade", fields[0].(map[string]interface{})["name"])
}

func TestCreateCategoryRequiresAdmin(t *testing.T) {
	app := setupApp(t)
	user := createTestUser(t, models.RoleUser)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/categories", user.Token,
		map[string]interface{}{"slug": "comics", "name": "Comics"}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := createTestUser(t, models.RoleAdmin)
	resp, body := doJSON(t, app, http.MethodPost, "/api/categories", admin.Token,
		map[string]interface{}{"slug": "comics", "name": "Comics"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "comics", body["slug"])
	require.Equal(t, true, body["active"])
}

func TestSlugFrozenOnceItemsExist(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	admin := createTestUser(t, models.RoleAdmin)

	require.NoError(t, db.DB.Create(&models.CatalogItem{
		CategoryID: category.ID, Price: 10, Status: models.ItemStatusListed,
	}).Error)

	resp, body := doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/categories/%d", category.ID), admin.Token,
		map[string]interface{}{"slug": "cards-v2"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["kind"])

	// Renaming the display name is still fine.
	resp, _ = doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/categories/%d", category.ID), admin.Token,
		map[string]interface{}{"name": "Sports Cards"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFieldEditInvalidatesResolvedSchema(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	admin := createTestUser(t, models.RoleAdmin)
	fieldsURL := fmt.Sprintf("/api/categories/%d/fields?variant=any", category.ID)

	// Prime the schema cache.
	resp, body := doJSON(t, app, http.MethodGet, fieldsURL, "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["fields"].([]interface{}), 2)

	resp, _ = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/categories/%d/fields", category.ID), admin.Token,
		map[string]interface{}{"name": "set_name", "priority": 0, "show_on_detail": true}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The edit must be visible immediately, not after the TTL.
	resp, body = doJSON(t, app, http.MethodGet, fieldsURL, "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["fields"].([]interface{}), 3)
}

func TestCreateSecondTitleFieldRejected(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	admin := createTestUser(t, models.RoleAdmin)

	resp, body := doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/categories/%d/fields", category.ID), admin.Token,
		map[string]interface{}{"name": "player", "mark_as_title": true}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["kind"])
}

func TestCreateItemRequiresAuth(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/catalog-items", "",
		map[string]interface{}{"category_id": category.ID, "price": 10}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "unauthorized", body["kind"])
}

func TestCreateItemValidatesRequiredFields(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	user := createTestUser(t, models.RoleUser)

	resp, body := doJSON(t, app, http.MethodPost, "/api/catalog-items", user.Token,
		map[string]interface{}{
			"category_id": category.ID,
			"price":       10,
			"graded":      true,
			"attributes":  map[string]string{},
		}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["kind"])
	errs := body["errors"].([]interface{})
	require.Len(t, errs, 1)
	require.Equal(t, "grade", errs[0].(map[string]interface{})["field"])
}

func TestCreateItemSetsTitleAndAttributes(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	user := createTestUser(t, models.RoleUser)

	resp, body := doJSON(t, app, http.MethodPost, "/api/catalog-items", user.Token,
		map[string]interface{}{
			"category_id": category.ID,
			"price":       25.5,
			"status":      "listed",
			"graded":      true,
			"attributes":  map[string]string{"grade": "PSA 9", "autograph": "yes"},
		}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "PSA 9", body["title"])
	require.Equal(t, "listed", body["status"])
	require.Len(t, body["attributes"].([]interface{}), 2)
}

func TestCreateItemIdempotencyKey(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	user := createTestUser(t, models.RoleUser)

	payload := map[string]interface{}{
		"category_id": category.ID,
		"price":       25.5,
		"status":      "listed",
		"attributes":  map[string]string{"grade": "PSA 9"},
	}
	headers := map[string]string{"Idempotency-Key": "abc-123"}

	resp, first := doJSON(t, app, http.MethodPost, "/api/catalog-items", user.Token, payload, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, second := doJSON(t, app, http.MethodPost, "/api/catalog-items", user.Token, payload, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, first["id"], second["id"])

	var count int64
	db.DB.Model(&models.CatalogItem{}).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestSearchItemsWithDynamicFilter(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	user := createTestUser(t, models.RoleUser)

	for _, grade := range []string{"PSA 9", "PSA 8"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/catalog-items", user.Token,
			map[string]interface{}{
				"category_id": category.ID,
				"price":       10,
				"status":      "listed",
				"attributes":  map[string]string{"grade": grade},
			}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/api/catalog-items?category_id=%d&grade=PSA+9", category.ID), "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["total"])

	// Dynamic filters are meaningless across categories.
	resp, body = doJSON(t, app, http.MethodGet, "/api/catalog-items?grade=PSA+9", "", nil, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_filter", body["kind"])
}

func TestPatchItemCategoryImmutable(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	user := createTestUser(t, models.RoleUser)

	other := models.Category{Slug: "coins", Name: "Coins", Active: true}
	require.NoError(t, db.DB.Create(&other).Error)

	item := models.CatalogItem{CategoryID: category.ID, OwnerID: user.ID, Price: 10, Status: models.ItemStatusDraft}
	require.NoError(t, db.DB.Create(&item).Error)
	require.NoError(t, db.DB.Create(&models.ItemAttribute{ItemID: item.ID, Name: "grade", Value: "PSA 9"}).Error)

	resp, body := doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), user.Token,
		map[string]interface{}{"category_id": other.ID}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["kind"])
}

func TestPatchItemStatusTransitions(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	user := createTestUser(t, models.RoleUser)

	item := models.CatalogItem{CategoryID: category.ID, OwnerID: user.ID, Price: 10, Status: models.ItemStatusDraft}
	require.NoError(t, db.DB.Create(&item).Error)
	require.NoError(t, db.DB.Create(&models.ItemAttribute{ItemID: item.ID, Name: "grade", Value: "PSA 9"}).Error)

	resp, body := doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), user.Token,
		map[string]interface{}{"status": "listed"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "listed", body["status"])

	// Listed cannot go back to draft.
	resp, body = doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), user.Token,
		map[string]interface{}{"status": "draft"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["kind"])
}

func TestPatchItemOwnerOnly(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	owner := createTestUser(t, models.RoleUser)
	stranger := createTestUser(t, models.RoleUser)

	item := models.CatalogItem{CategoryID: category.ID, OwnerID: owner.ID, Price: 10, Status: models.ItemStatusDraft}
	require.NoError(t, db.DB.Create(&item).Error)

	resp, body := doJSON(t, app, http.MethodPatch,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), stranger.Token,
		map[string]interface{}{"price": 1}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "forbidden", body["kind"])
}

func TestDeleteItemReferencedByTradeWithdraws(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	owner := createTestUser(t, models.RoleUser)
	buyer := createTestUser(t, models.RoleUser)

	item := models.CatalogItem{CategoryID: category.ID, OwnerID: owner.ID, Price: 10, Status: models.ItemStatusListed}
	require.NoError(t, db.DB.Create(&item).Error)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/trades", buyer.Token,
		map[string]interface{}{"item_id": item.ID}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sold models.CatalogItem
	require.NoError(t, db.DB.First(&sold, item.ID).Error)
	require.Equal(t, models.ItemStatusSold, sold.Status)

	resp, _ = doJSON(t, app, http.MethodDelete,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), owner.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Still present, just withdrawn.
	var kept models.CatalogItem
	require.NoError(t, db.DB.First(&kept, item.ID).Error)
	require.Equal(t, models.ItemStatusWithdrawn, kept.Status)
}

func TestGetItemHidesDraftFromStrangers(t *testing.T) {
	app := setupApp(t)
	category := seedTradingCards(t)
	owner := createTestUser(t, models.RoleUser)

	item := models.CatalogItem{CategoryID: category.ID, OwnerID: owner.ID, Price: 10, Status: models.ItemStatusDraft}
	require.NoError(t, db.DB.Create(&item).Error)

	resp, _ := doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), "", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet,
		fmt.Sprintf("/api/catalog-items/%d", item.ID), owner.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRotatesToken(t *testing.T) {
	app := setupApp(t)
	user := createTestUser(t, models.RoleUser)

	resp, body := doJSON(t, app, http.MethodPost, "/api/login", "",
		map[string]interface{}{"email": user.Email, "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEqual(t, user.Token, body["token"])

	resp, _ = doJSON(t, app, http.MethodPost, "/api/login", "",
		map[string]interface{}{"email": user.Email, "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

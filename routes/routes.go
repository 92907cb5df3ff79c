package routes

import (
	"errors"
	"path/filepath"
	"strings"

	"cardmart/catalog"
	"cardmart/db"
	"cardmart/models"
	"cardmart/schema"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = validator.New()

var (
	resolver *schema.Resolver
	attrs    *catalog.Store
	engine   *catalog.Engine
)

func SetupRoutes(app *fiber.App, res *schema.Resolver, store *catalog.Store, eng *catalog.Engine) {
	resolver = res
	attrs = store
	engine = eng

	startBroadcaster()

	// Event feed and image upload
	app.Get("/ws", feedHandler())
	app.Post("/upload", uploadImage)

	api := app.Group("/api")

	api.Post("/login", loginHandler)

	users := api.Group("/users")
	users.Post("/", createUser)
	users.Get("/", getAllUsers)
	users.Get("/:id", getUser)
	users.Put("/:id", requireAuth, updateUser)
	users.Delete("/:id", requireAuth, deleteUser)

	// Category and field-definition routes
	categories := api.Group("/categories")
	categories.Get("/", getAllCategories)
	categories.Post("/", requireAdmin, createCategory)
	categories.Get("/:id", getCategory)
	categories.Put("/:id", requireAdmin, updateCategory)
	categories.Delete("/:id", requireAdmin, deleteCategory)
	categories.Get("/:id/fields", getCategoryFields)
	categories.Post("/:id/fields", requireAdmin, createField)
	categories.Put("/:id/fields/:fieldId", requireAdmin, updateField)
	categories.Delete("/:id/fields/:fieldId", requireAdmin, deleteField)

	// Catalog item routes
	items := api.Group("/catalog-items")
	items.Get("/", optionalAuth, searchItems)
	items.Get("/:id", optionalAuth, getItem)
	items.Post("/", requireAuth, createItem)
	items.Patch("/:id", requireAuth, patchItem)
	items.Delete("/:id", requireAuth, deleteItem)

	// Trade routes
	trades := api.Group("/trades")
	trades.Post("/", requireAuth, createTrade)
	trades.Get("/:id", requireAuth, getTrade)
}

// currentUser resolves the caller from a bearer token. Token issuance
// and validation beyond a lookup are the identity provider's problem;
// the handlers trust whatever it says.
func currentUser(c *fiber.Ctx) (*models.User, error) {
	header := c.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return nil, errors.New("missing bearer token")
	}

	var user models.User
	if err := db.DB.Where("token = ?", token).First(&user).Error; err != nil {
		return nil, errors.New("invalid token")
	}
	return &user, nil
}

func requireAuth(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"kind":  "unauthorized",
			"error": err.Error(),
		})
	}
	c.Locals("user", user)
	return c.Next()
}

func requireAdmin(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"kind":  "unauthorized",
			"error": err.Error(),
		})
	}
	if user.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"kind":  "forbidden",
			"error": "admin role required",
		})
	}
	c.Locals("user", user)
	return c.Next()
}

// optionalAuth attaches the caller when a valid token is present but
// never rejects the request.
func optionalAuth(c *fiber.Ctx) error {
	if user, err := currentUser(c); err == nil {
		c.Locals("user", user)
	}
	return c.Next()
}

func callerFromLocals(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// respondError maps core errors onto the HTTP error taxonomy. Store
// internals never reach the response body.
func respondError(c *fiber.Ctx, err error) error {
	var verrs catalog.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"kind":   "validation_error",
			"error":  verrs.Error(),
			"errors": verrs,
		})
	case errors.Is(err, catalog.ErrInvalidFilter), errors.Is(err, schema.ErrUnknownVariant):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"kind":  "invalid_filter",
			"error": err.Error(),
		})
	case errors.Is(err, schema.ErrUnknownCategory),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"kind":  "not_found",
			"error": "not found",
		})
	case errors.Is(err, catalog.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"kind":  "forbidden",
			"error": "forbidden",
		})
	case errors.Is(err, catalog.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"kind":  "store_unavailable",
			"error": "storage temporarily unavailable",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"kind":  "internal",
			"error": "internal error",
		})
	}
}

// Image upload handler
func uploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to get uploaded file",
		})
	}

	// Generate unique filename
	ext := filepath.Ext(file.Filename)
	uniqueID := uuid.New().String()
	filename := uniqueID + ext
	filepath := "./uploads/" + filename

	// Save the file
	if err := c.SaveFile(file, filepath); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save file",
		})
	}

	// Return the file path that can be stored in the database
	return c.JSON(fiber.Map{
		"filename": filename,
		"path":     "/uploads/" + filename,
	})
}

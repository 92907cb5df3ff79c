package main

import (
	"log"
	"os"

	"cardmart/catalog"
	"cardmart/config"
	"cardmart/db"
	"cardmart/jobs"
	"cardmart/routes"
	"cardmart/schema"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg := config.Load()

	// Initialize database
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	// Create uploads directory if it doesn't exist
	if _, err := os.Stat("uploads"); os.IsNotExist(err) {
		os.Mkdir("uploads", 0755)
	}

	resolver := schema.NewResolver(db.DB, cfg.SchemaTTL)
	store := catalog.NewStore(resolver)
	engine := catalog.NewEngine(db.DB, resolver)

	// Create Fiber app
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Serve static files
	app.Static("/uploads", "./uploads")

	// Setup routes
	routes.SetupRoutes(app, resolver, store, engine)

	// Background listing expiry
	sweeper := jobs.NewExpirySweeper(db.DB, routes.BroadcastItemEvent)
	if err := sweeper.Start(cfg.ExpirySweep); err != nil {
		log.Fatal("Failed to start expiry sweeper:", err)
	}
	defer sweeper.Stop()

	// Start server
	log.Fatal(app.Listen(cfg.Addr))
}

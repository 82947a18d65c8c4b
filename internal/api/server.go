// Package api exposes the test case collection over HTTP.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/tcs-sec/vulncases/internal/config"
	"github.com/tcs-sec/vulncases/internal/database"
)

// NewServer builds the fiber app with timeouts from the config file and the
// routes of the v1 API.
func NewServer(cfg *config.Config, store *database.TestCaseStore) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "TCS Vulnerability Testcases API",
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	// Log every request
	app.Use(logger.New())

	h := &handlers{store: store}
	setupRoutes(app, h)

	return app
}

// setupRoutes configures all the routes for the API server.
func setupRoutes(app *fiber.App, h *handlers) {
	v1 := app.Group("/api/v1")
	v1.Get("/test_cases", h.readTestCases)
	v1.Post("/test_cases", h.addTestCases)
	v1.Put("/test_cases", h.updateTestCases)
	v1.Delete("/test_cases", h.deleteTestCases)

	app.Get("/health", h.health)
}

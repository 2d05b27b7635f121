package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rxtech-lab/webhost-mcp/internal/api"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/mcp"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
)

var (
	apiServer *api.APIServer
	initOnce  sync.Once
	initErr   error
)

// Handler is the main Vercel function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	// Initialize the API server only once
	initOnce.Do(func() {
		initErr = initializeAPIServer()
	})
	if initErr != nil {
		log.Printf("Failed to initialize API server: %v", initErr)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adaptor.FiberApp(apiServer.GetFiberApp())(w, r)
}

// initializeAPIServer wires the services from the environment. Functions do
// not run the event listener; the index is fed by a long-running server.
func initializeAPIServer() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// In Vercel, we need to use /tmp for writable storage
	if os.Getenv("VERCEL") == "1" && cfg.PostgresURL == "" {
		cfg.DatabasePath = "/tmp/webhost.db"
	}

	svcs, _, err := server.Open(context.Background(), cfg)
	if err != nil {
		return err
	}

	apiServer = api.NewAPIServer(svcs, cfg)
	apiServer.SetMCPServer(mcp.NewMCPServer(svcs, cfg.Port))
	apiServer.EnableStreamableHttp()

	// Add a root route for Vercel
	apiServer.GetFiberApp().Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message":  "Website Hosting MCP API",
			"status":   "running",
			"contract": svcs.Ledger.ContractAddress().Hex(),
		})
	})

	return nil
}

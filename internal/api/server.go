package api

import (
	"fmt"
	"log"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/webhost-mcp/internal/api/middleware"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/mcp"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

type APIServer struct {
	app           *fiber.App
	services      *server.Services
	authenticator *utils.JwtAuthenticator
	mcpServer     *mcp.MCPServer
	maxUploadSize int64
	port          int
}

// NewAPIServer creates the HTTP API. Write routes require a bearer token when
// JWT_SECRET is configured.
func NewAPIServer(svcs *server.Services, cfg *config.Config) *APIServer {
	maxUploadSize := cfg.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = config.DefaultMaxUploadSize
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// Multipart framing needs headroom above the file limit.
		BodyLimit: int(maxUploadSize) + 1<<20,
	})

	// Add middleware
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	s := &APIServer{
		app:           app,
		services:      svcs,
		maxUploadSize: maxUploadSize,
	}
	if cfg.JWTSecret != "" {
		s.authenticator = utils.NewJwtAuthenticator(cfg.JWTSecret)
	}
	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"read_only": s.services.ReadOnly(),
			"contract":  s.services.Ledger.ContractAddress().Hex(),
		})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.services.Registry, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")
	api.Get("/deployments", s.handleListDeployments)
	api.Get("/deployments/:id", s.handleGetDeployment)
	api.Get("/stats", s.handleStats)
	api.Get("/gateways/:cid", s.handleGateways)
	api.Get("/activity", s.handleActivity)
	api.Get("/submissions", s.handleListSubmissions)
	api.Get("/node", s.handleNodeInfo)
	api.Post("/deployments", s.authMiddleware(), s.handleCreateDeployment)
}

// authMiddleware enforces bearer tokens when an authenticator is configured.
func (s *APIServer) authMiddleware() fiber.Handler {
	if s.authenticator == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.AuthMiddleware(middleware.AuthConfig{
		JWTAuthenticator: s.authenticator,
		RequiredScope:    middleware.ScopeDeploy,
	})
}

// EnableStreamableHttp mounts the MCP server at /mcp behind the auth middleware.
func (s *APIServer) EnableStreamableHttp() {
	if s.mcpServer == nil {
		log.Println("MCP server not set, streamable HTTP is disabled")
		return
	}
	handler := mcpserver.NewStreamableHTTPServer(s.mcpServer.Server(), mcpserver.WithStateLess(true))
	s.app.All("/mcp", s.authMiddleware(), adaptor.HTTPHandler(handler))
	s.app.All("/mcp/*", s.authMiddleware(), adaptor.HTTPHandler(handler))
}

// Start listens on port, or on a random free port when port is nil or zero.
func (s *APIServer) Start(port *int) (int, error) {
	addr := ":0"
	if port != nil && *port != 0 {
		addr = fmt.Sprintf(":%d", *port)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	go func() {
		if err := s.app.Listener(listener); err != nil {
			log.Printf("Error starting API server: %v\n", err)
		}
	}()

	return s.port, nil
}

func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}

func (s *APIServer) GetPort() int {
	return s.port
}

// GetFiberApp returns the underlying fiber app, e.g. for app.Test.
func (s *APIServer) GetFiberApp() *fiber.App {
	return s.app
}

// SetMCPServer sets the MCP server instance served by EnableStreamableHttp
func (s *APIServer) SetMCPServer(mcpServer *mcp.MCPServer) {
	s.mcpServer = mcpServer
}

// GetMCPServer returns the MCP server instance
func (s *APIServer) GetMCPServer() *mcp.MCPServer {
	return s.mcpServer
}

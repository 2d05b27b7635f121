package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/webhost-mcp/internal/api"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/mcp"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
)

// configureAndStartServer serves the HTTP API and MCP over streamable HTTP on
// one port. Write routes and /mcp require a token when JWT_SECRET is set.
func configureAndStartServer(svcs *server.Services, cfg *config.Config, port int) (*api.APIServer, int, error) {
	mcpServer := mcp.NewMCPServer(svcs, port)
	apiServer := api.NewAPIServer(svcs, cfg)
	apiServer.SetMCPServer(mcpServer)
	apiServer.EnableStreamableHttp()

	var portPtr *int
	if port != 0 {
		portPtr = &port
	}
	startedPort, err := apiServer.Start(portPtr)
	if err != nil {
		return nil, 0, err
	}
	return apiServer, startedPort, nil
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET is not set, write routes and /mcp are unauthenticated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcs, closeServices, err := server.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize services: ", err)
	}
	defer closeServices()

	stopHooks, err := server.StartHooks(ctx, svcs)
	if err != nil {
		log.Printf("Event listener disabled: %v", err)
		stopHooks = func() {}
	}
	defer stopHooks()

	apiServer, startedPort, err := configureAndStartServer(svcs, cfg, cfg.Port)
	if err != nil {
		log.Fatal("Failed to start API server: ", err)
	}

	log.Printf("API server started on port %d\n", startedPort)

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down server...")

	// Shutdown API server
	if err := apiServer.Shutdown(); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Server shut down successfully")
}

package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/webhost-mcp/internal/api"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/mcp"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

// configureAndStartServer starts the local HTTP API and attaches the MCP server
// to it. The local API does not require tokens.
func configureAndStartServer(svcs *server.Services, cfg *config.Config, port int) (*api.APIServer, int, error) {
	localCfg := *cfg
	localCfg.JWTSecret = ""
	apiServer := api.NewAPIServer(svcs, &localCfg)

	// Start API server first to get the actual port
	var portPtr *int
	if port != 0 {
		portPtr = &port
	}
	startedPort, err := apiServer.Start(portPtr)
	if err != nil {
		return nil, 0, err
	}

	// Now initialize MCP server with the actual port
	mcpServer := mcp.NewMCPServer(svcs, startedPort)
	apiServer.SetMCPServer(mcpServer)

	return apiServer, startedPort, nil
}

func main() {
	// Command line flags
	var showVersion = flag.Bool("version", false, "Show version information")
	var showHelp = flag.Bool("help", false, "Show help information")
	var enableLog = flag.Bool("log", false, "Enable logging output")
	var envFile = flag.String("env", ".env", "Environment file to load if present")
	flag.Parse()

	// Disable logging by default
	if !*enableLog {
		log.SetOutput(io.Discard)
	}

	// Show version information
	if *showVersion {
		log.SetOutput(os.Stderr)
		log.Printf("Website Hosting MCP Server\n")
		log.Printf("Version: %s\n", Version)
		log.Printf("Commit: %s\n", CommitHash)
		log.Printf("Built: %s\n", BuildTime)
		return
	}

	if *showHelp {
		log.SetOutput(os.Stderr)
		log.Printf("Website Hosting MCP Server\n\n")
		log.Printf("Usage: %s [options]\n\n", os.Args[0])
		log.Printf("Options:\n")
		log.Printf("  --version    Show version information\n")
		log.Printf("  --help       Show this help message\n")
		log.Printf("  --log        Enable logging output\n")
		log.Printf("  --env        Environment file to load (default .env)\n\n")
		log.Printf("Description:\n")
		log.Printf("  Publishes static websites to IPFS and records each deployment on an\n")
		log.Printf("  Ethereum contract. Configure with RPC_URL, CONTRACT_ADDRESS, PRIVATE_KEY\n")
		log.Printf("  and IPFS_API_URL.\n\n")
		log.Printf("Database: ~/webhost.db (SQLite)\n")
		log.Printf("Web API: http://localhost:[random-port]/api\n")
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcs, closeServices, err := server.Open(ctx, cfg)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("Failed to initialize services: ", err)
	}
	defer closeServices()

	stopHooks, err := server.StartHooks(ctx, svcs)
	if err != nil {
		log.Printf("Event listener disabled: %v", err)
		stopHooks = func() {}
	}
	defer stopHooks()

	// Configure and start server
	apiServer, port, err := configureAndStartServer(svcs, cfg, 0) // 0 for random port
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal("Failed to start API server: ", err)
	}

	log.Printf("API server started on port %d\n", port)

	// Get MCP server for stdio communication
	mcpServer := apiServer.GetMCPServer()
	if mcpServer == nil {
		log.Fatal("MCP server not found")
	}

	// Serve MCP over stdio in a goroutine
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := mcpServer.StartStdioServer(); err != nil {
			log.Printf("MCP server stopped: %v", err)
		}
	}()

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case <-c:
	case <-done:
	}

	log.Println("Shutting down servers...")

	// Shutdown API server
	if err := apiServer.Shutdown(); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Servers shut down successfully")
}

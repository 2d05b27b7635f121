package server

import (
	"context"
	"fmt"
	"log"

	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
)

// Open connects to the node, the IPFS API, the database and the cache named by
// cfg and wires the services over them. The returned function releases the
// connections.
func Open(ctx context.Context, cfg *config.Config) (*Services, func(), error) {
	store, err := ipfs.NewClient(cfg.IPFSAPIURL)
	if err != nil {
		return nil, nil, err
	}

	client, err := ConnectLedger(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	dbService, err := OpenDatabase(cfg)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	svcs, err := InitializeServices(cfg, dbService.GetDB(), client, store, NewDeploymentCache(cfg))
	if err != nil {
		dbService.Close()
		client.Close()
		return nil, nil, err
	}

	log.Printf("Connected to chain %d, contract %s", cfg.ChainID, cfg.ContractAddress)
	if svcs.ReadOnly() {
		log.Println("No PRIVATE_KEY configured, running read-only")
	}

	closeFn := func() {
		if err := dbService.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
		client.Close()
	}
	return svcs, closeFn, nil
}

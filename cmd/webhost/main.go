package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

// openServicesFunc connects the services a command needs. Tests replace it.
type openServicesFunc func(ctx context.Context, cfg *config.Config) (*server.Services, func(), error)

type cli struct {
	envFile      string
	openServices openServicesFunc
	loadConfig   func(envFile string) (*config.Config, error)
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webhost",
		Short: "Publish static websites to IPFS and record them on-chain",
		Long: `webhost publishes a static website to IPFS and records the deployment in an
Ethereum contract, so every release of a site has a permanent, verifiable record.

Configuration is read from the environment and an optional .env file
(RPC_URL, CONTRACT_ADDRESS, PRIVATE_KEY, IPFS_API_URL, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env", ".env", "Environment file to load if present")

	rootCmd.AddCommand(newDeployCmd(c))
	rootCmd.AddCommand(newListCmd(c))
	rootCmd.AddCommand(newShowCmd(c))
	rootCmd.AddCommand(newStatsCmd(c))
	rootCmd.AddCommand(newWatchCmd(c))
	rootCmd.AddCommand(newURLsCmd(c))
	rootCmd.AddCommand(newTokenCmd(c))
	return rootCmd
}

// connect loads the configuration and opens the services.
func (c *cli) connect(ctx context.Context) (*config.Config, *server.Services, func(), error) {
	cfg, err := c.loadConfig(c.envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	svcs, closeFn, err := c.openServices(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, svcs, closeFn, nil
}

func main() {
	c := &cli{
		openServices: server.Open,
		loadConfig: func(envFile string) (*config.Config, error) {
			return config.Load(envFile)
		},
	}
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/hooks"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// deploymentCacheTTL bounds Redis entries. Deployments are immutable; the TTL
// only keeps abandoned contracts from filling the cache.
const deploymentCacheTTL = 24 * time.Hour

// Services is the wired service graph shared by the HTTP API, the MCP server
// and the CLI.
type Services struct {
	Content     services.ContentService
	Gateways    services.GatewayService
	Ledger      services.LedgerService
	Deployments services.DeploymentService
	Events      services.EventService
	Launcher    services.LaunchService
	Submissions services.SubmissionService
	Index       services.IndexService
	Hooks       services.HookService
	Metrics     *services.Metrics
	Registry    *prometheus.Registry
	// Signer is nil when no private key is configured.
	Signer *bind.TransactOpts
}

// ReadOnly reports whether deployments can be recorded.
func (s *Services) ReadOnly() bool {
	return s.Signer == nil
}

// ConnectLedger dials the configured node and fills in the chain id when it is
// not configured.
func ConnectLedger(ctx context.Context, cfg *config.Config) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
	}
	if cfg.ChainID == 0 {
		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to read chain id: %w", err)
		}
		cfg.ChainID = chainID.Int64()
	}
	return client, nil
}

// OpenDatabase opens Postgres when POSTGRES_URL is set and SQLite otherwise.
func OpenDatabase(cfg *config.Config) (services.DBService, error) {
	if cfg.PostgresURL != "" {
		return services.NewPostgresDBService(cfg.PostgresURL)
	}
	return services.NewSqliteDBService(cfg.DatabasePath)
}

// NewDeploymentCache uses Redis when REDIS_ADDR is set. An unreachable Redis
// falls back to an in-process cache.
func NewDeploymentCache(cfg *config.Config) services.DeploymentCache {
	if cfg.RedisAddr != "" {
		cache, err := services.NewRedisDeploymentCache(cfg.RedisAddr, cfg.RedisPassword, common.HexToAddress(cfg.ContractAddress), deploymentCacheTTL)
		if err == nil {
			return cache
		}
		log.Printf("Redis cache unavailable, using memory cache: %v", err)
	}
	return services.NewMemoryDeploymentCache(4096)
}

// InitializeServices wires the service graph over an open node connection,
// content store and database.
func InitializeServices(cfg *config.Config, db *gorm.DB, backend services.LedgerBackend, store ipfs.Store, cache services.DeploymentCache) (*Services, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	var limiter *rate.Limiter
	if cfg.ReadRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ReadRateLimit), max(int(cfg.ReadRateLimit), 1))
	}

	contract := common.HexToAddress(cfg.ContractAddress)
	ledger, err := services.NewLedgerService(backend, services.LedgerConfig{
		ContractAddress: contract,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		ReadLimiter:     limiter,
	}, metrics)
	if err != nil {
		return nil, err
	}
	events, err := services.NewEventService(backend, contract, cfg.EventPollInterval, metrics)
	if err != nil {
		return nil, err
	}

	var signer *bind.TransactOpts
	if !cfg.ReadOnly() {
		signer, err = utils.NewTransactor(cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			return nil, err
		}
	}

	content := services.NewContentService(store, services.UploadRetryPolicy{
		MaxAttempts: cfg.UploadMaxAttempts,
		Base:        cfg.UploadBackoffBase,
		Cap:         cfg.UploadBackoffCap,
	}, metrics)
	gateways := services.NewGatewayService(cfg.IPFSGateways, &http.Client{Timeout: 10 * time.Second})
	submissions := services.NewSubmissionService(db)

	return &Services{
		Content:     content,
		Gateways:    gateways,
		Ledger:      ledger,
		Deployments: services.NewDeploymentService(ledger, cache, cfg.ReadConcurrency),
		Events:      events,
		Launcher:    services.NewLaunchService(content, ledger, gateways, submissions, metrics),
		Submissions: submissions,
		Index:       services.NewIndexService(db),
		Hooks:       services.NewHookService(),
		Metrics:     metrics,
		Registry:    registry,
		Signer:      signer,
	}, nil
}

func InitializeHooks(svcs *Services) (services.Hook, services.Hook) {
	indexHook := hooks.NewIndexHook(svcs.Index)
	submissionHook := hooks.NewSubmissionHook(svcs.Submissions)

	return indexHook, submissionHook
}

func RegisterHooks(hookService services.HookService, indexHook services.Hook, submissionHook services.Hook) error {
	if err := hookService.AddHook(indexHook); err != nil {
		return fmt.Errorf("failed to register index hook: %w", err)
	}
	if err := hookService.AddHook(submissionHook); err != nil {
		return fmt.Errorf("failed to register submission hook: %w", err)
	}
	return nil
}

// StartHooks registers the hooks and starts feeding them ledger events. The
// returned function stops the listener.
func StartHooks(ctx context.Context, svcs *Services) (func(), error) {
	indexHook, submissionHook := InitializeHooks(svcs)
	if err := RegisterHooks(svcs.Hooks, indexHook, submissionHook); err != nil {
		return nil, err
	}
	return svcs.Hooks.Listen(ctx, svcs.Events)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rxtech-lab/webhost-mcp/internal/contracts"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
)

// DefaultEventPollInterval is used when the node cannot push logs.
const DefaultEventPollInterval = 4 * time.Second

// DeploymentEventHandler receives events one at a time, in observed order.
type DeploymentEventHandler func(event models.DeploymentEvent)

type EventService interface {
	// Subscribe delivers WebsiteDeployed events observed after registration.
	// The returned function stops delivery; it is safe to call more than once.
	Subscribe(ctx context.Context, onEvent DeploymentEventHandler) (func(), error)
}

type eventService struct {
	backend      LedgerBackend
	address      common.Address
	decoder      *contracts.EventDecoder
	topic        common.Hash
	pollInterval time.Duration
	metrics      *Metrics
}

func NewEventService(backend LedgerBackend, address common.Address, pollInterval time.Duration, metrics *Metrics) (EventService, error) {
	decoder, err := contracts.NewEventDecoder(address)
	if err != nil {
		return nil, err
	}
	parsed, err := contracts.WebHostABI()
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		pollInterval = DefaultEventPollInterval
	}
	return &eventService{
		backend:      backend,
		address:      address,
		decoder:      decoder,
		topic:        parsed.Events[contracts.EventWebsiteDeployed].ID,
		pollInterval: pollInterval,
		metrics:      metrics,
	}, nil
}

func (s *eventService) query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{s.address},
		Topics:    [][]common.Hash{{s.topic}},
	}
}

func (s *eventService) Subscribe(ctx context.Context, onEvent DeploymentEventHandler) (func(), error) {
	if onEvent == nil {
		return nil, &ValidationError{Field: "onEvent", Reason: "handler is required"}
	}

	// Unsubscribe only cancels, so it may be called from inside onEvent.
	ctx, cancel := context.WithCancel(ctx)

	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		cancel()
		return nil, &LedgerReadError{Op: "blockNumber", Err: err}
	}
	start := head.Number.Uint64() + 1

	logs := make(chan types.Log, 64)
	sub, err := s.backend.SubscribeFilterLogs(ctx, s.query(), logs)
	switch {
	case err == nil:
		go s.watch(ctx, sub, logs, start, onEvent)
	case errors.Is(err, rpc.ErrNotificationsUnsupported):
		log.Printf("Log subscriptions unsupported, polling every %s", s.pollInterval)
		go s.poll(ctx, start, &logCursor{}, onEvent)
	default:
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", contracts.EventWebsiteDeployed, err)
	}

	return func() { cancel() }, nil
}

// logCursor is the position of the last log handed to the handler.
type logCursor struct {
	block uint64
	index uint
	seen  bool
}

func (c *logCursor) isNew(raw types.Log) bool {
	if !c.seen {
		return true
	}
	return raw.BlockNumber > c.block || (raw.BlockNumber == c.block && raw.Index > c.index)
}

func (c *logCursor) advance(raw types.Log) {
	c.block, c.index, c.seen = raw.BlockNumber, raw.Index, true
}

// watch consumes pushed logs. When the subscription ends it continues by
// polling from the last delivered log, so no event is lost to a dropped
// connection.
func (s *eventService) watch(ctx context.Context, sub ethereum.Subscription, logs <-chan types.Log, start uint64, onEvent DeploymentEventHandler) {
	cursor := &logCursor{}
	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case err := <-sub.Err():
			sub.Unsubscribe()
			if ctx.Err() != nil {
				return
			}
			from := start
			if cursor.seen {
				from = cursor.block
			}
			s.metrics.observeEvent("subscription_dropped")
			log.Printf("Event subscription ended: %v, polling from block %d every %s", err, from, s.pollInterval)
			s.poll(ctx, from, cursor, onEvent)
			return
		case raw := <-logs:
			s.handle(ctx, raw, cursor, onEvent)
		}
	}
}

// poll scans blocks from fromBlock onward with FilterLogs.
func (s *eventService) poll(ctx context.Context, fromBlock uint64, cursor *logCursor, onEvent DeploymentEventHandler) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	next := fromBlock
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := s.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			log.Printf("Failed to read head block: %v", err)
			continue
		}
		latest := head.Number.Uint64()
		if latest < next {
			continue
		}

		query := s.query()
		query.FromBlock = new(big.Int).SetUint64(next)
		query.ToBlock = new(big.Int).SetUint64(latest)
		logs, err := s.backend.FilterLogs(ctx, query)
		if err != nil {
			log.Printf("Failed to filter logs %d-%d: %v", next, latest, err)
			continue
		}
		for _, raw := range logs {
			s.handle(ctx, raw, cursor, onEvent)
		}
		next = latest + 1
	}
}

func (s *eventService) handle(ctx context.Context, raw types.Log, cursor *logCursor, onEvent DeploymentEventHandler) {
	if raw.Removed {
		s.deliver(ctx, raw, onEvent)
		return
	}
	if !cursor.isNew(raw) {
		return
	}
	cursor.advance(raw)
	s.deliver(ctx, raw, onEvent)
}

func (s *eventService) deliver(ctx context.Context, raw types.Log, onEvent DeploymentEventHandler) {
	if ctx.Err() != nil {
		return
	}
	if raw.Removed {
		s.metrics.observeEvent("removed")
		return
	}

	decoded, err := s.decoder.Decode(raw)
	if err != nil {
		s.metrics.observeEvent("malformed")
		log.Printf("Skipping malformed log in tx %s: %v", raw.TxHash.Hex(), err)
		return
	}

	switch event := decoded.(type) {
	case contracts.WebsiteDeployed:
		s.metrics.observeEvent("deployed")
		onEvent(event.Deployment)
	case contracts.Unrecognized:
		s.metrics.observeEvent("unrecognized")
	}
}

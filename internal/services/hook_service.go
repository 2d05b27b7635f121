package services

import (
	"context"
	"log"
	"sync"

	"github.com/rxtech-lab/webhost-mcp/internal/models"
)

type HookService interface {
	AddHook(hook Hook) error
	OnDeploymentRecorded(event models.DeploymentEvent) error
	// Listen feeds every event from events to the hooks until the returned
	// function is called or ctx ends. Hook errors are logged.
	Listen(ctx context.Context, events EventService) (func(), error)
}

type hookService struct {
	mu    sync.RWMutex
	hooks []Hook
}

func NewHookService() HookService {
	return &hookService{
		hooks: []Hook{},
	}
}

func (h *hookService) AddHook(hook Hook) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
	return nil
}

func (h *hookService) OnDeploymentRecorded(event models.DeploymentEvent) error {
	h.mu.RLock()
	hooks := append([]Hook(nil), h.hooks...)
	h.mu.RUnlock()

	for _, hook := range hooks {
		if hook.CanHandle(event) {
			if err := hook.OnDeploymentRecorded(event); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *hookService) Listen(ctx context.Context, events EventService) (func(), error) {
	return events.Subscribe(ctx, func(event models.DeploymentEvent) {
		if err := h.OnDeploymentRecorded(event); err != nil {
			log.Printf("Hook failed for deployment %d: %v", event.ID, err)
		}
	})
}

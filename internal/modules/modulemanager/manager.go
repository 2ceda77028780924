// Package modulemanager wires the functional modules together: each module
// registers itself, migrates its schema and initializes in registration
// order. Modules optionally expose HTTP routes and background services.
package modulemanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
)

// Module is the contract every functional module implements.
type Module interface {
	ID() string
	Name() string
	Core() bool
	Migrate(db *gorm.DB) error
	Init() error
}

// RouteRegistrar is implemented by modules that expose HTTP routes.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// Service is implemented by modules that run background work.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ModuleRegistry manages module registration and lifecycle.
type ModuleRegistry struct {
	logger hclog.Logger

	mu          sync.RWMutex
	modules     map[string]Module
	order       []string
	disabled    map[string]bool
	initialized bool
}

// NewRegistry creates an empty module registry.
func NewRegistry(logger hclog.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		logger:   logger,
		modules:  make(map[string]Module),
		disabled: make(map[string]bool),
	}
}

// Register adds a module. Registration order is initialization order.
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		r.logger.Warn("module registered after initialization", "module", m.ID())
	}
	if _, exists := r.modules[m.ID()]; !exists {
		r.order = append(r.order, m.ID())
	}
	r.modules[m.ID()] = m
	r.logger.Debug("module registered", "module", m.ID(), "name", m.Name())
}

// Disable marks a non-core module as disabled.
func (r *ModuleRegistry) Disable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, exists := r.modules[id]
	if !exists {
		return fmt.Errorf("unknown module: %s", id)
	}
	if m.Core() {
		return fmt.Errorf("cannot disable core module: %s", id)
	}
	r.disabled[id] = true
	return nil
}

// LoadAll migrates and initializes all enabled modules in registration
// order.
func (r *ModuleRegistry) LoadAll(db *gorm.DB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}
	for _, id := range r.order {
		m := r.modules[id]
		if r.disabled[id] {
			r.logger.Info("skipping disabled module", "module", id)
			continue
		}
		if err := m.Migrate(db); err != nil {
			return fmt.Errorf("migrate module %s: %w", id, err)
		}
		if err := m.Init(); err != nil {
			return fmt.Errorf("init module %s: %w", id, err)
		}
		r.logger.Info("module loaded", "module", id, "name", m.Name())
	}
	r.initialized = true
	return nil
}

// StartServices starts every module implementing Service.
func (r *ModuleRegistry) StartServices(ctx context.Context) error {
	for _, m := range r.enabledModules() {
		svc, ok := m.(Service)
		if !ok {
			continue
		}
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("start module %s: %w", m.ID(), err)
		}
	}
	return nil
}

// StopServices stops background services in reverse registration order.
func (r *ModuleRegistry) StopServices(ctx context.Context) {
	mods := r.enabledModules()
	for i := len(mods) - 1; i >= 0; i-- {
		svc, ok := mods[i].(Service)
		if !ok {
			continue
		}
		if err := svc.Stop(ctx); err != nil {
			r.logger.Warn("module stop failed", "module", mods[i].ID(), "error", err)
		}
	}
}

// RegisterRoutes registers routes for all modules implementing
// RouteRegistrar.
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	for _, m := range r.enabledModules() {
		if registrar, ok := m.(RouteRegistrar); ok {
			registrar.RegisterRoutes(router)
		}
	}
}

// Get returns a module by id.
func (r *ModuleRegistry) Get(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// List returns all registered modules in registration order.
func (r *ModuleRegistry) List() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

func (r *ModuleRegistry) enabledModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.order))
	for _, id := range r.order {
		if !r.disabled[id] {
			out = append(out, r.modules[id])
		}
	}
	return out
}

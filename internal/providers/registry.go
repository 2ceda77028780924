package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

// Registry tracks configured provider instances, their capabilities and
// lifecycle. Lookups are supported by instance id or by domain.
type Registry struct {
	logger hclog.Logger

	mu        sync.RWMutex
	providers map[string]MusicProvider
	limiters  map[string]*rate.Limiter
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger hclog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		providers: make(map[string]MusicProvider),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Register starts the provider and adds it to the registry. Registering an
// instance id twice replaces (and stops) the previous instance.
func (r *Registry) Register(ctx context.Context, prov MusicProvider) error {
	r.mu.Lock()
	previous := r.providers[prov.InstanceID()]
	r.mu.Unlock()
	if previous != nil {
		if err := previous.Stop(ctx); err != nil {
			r.logger.Warn("failed to stop replaced provider", "instance_id", prov.InstanceID(), "error", err)
		}
	}
	if err := prov.Start(ctx); err != nil {
		return fmt.Errorf("start provider %s: %w", prov.InstanceID(), err)
	}
	r.mu.Lock()
	r.providers[prov.InstanceID()] = prov
	if _, ok := r.limiters[prov.InstanceID()]; !ok {
		// sane default: burst of 10, ~4 requests/second sustained
		r.limiters[prov.InstanceID()] = rate.NewLimiter(rate.Limit(4), 10)
	}
	r.mu.Unlock()
	r.logger.Info("provider registered", "instance_id", prov.InstanceID(), "domain", prov.Domain())
	return nil
}

// Unregister stops and removes a provider instance.
func (r *Registry) Unregister(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	prov, ok := r.providers[instanceID]
	delete(r.providers, instanceID)
	delete(r.limiters, instanceID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := prov.Stop(ctx); err != nil {
		return fmt.Errorf("stop provider %s: %w", instanceID, err)
	}
	r.logger.Info("provider unregistered", "instance_id", instanceID)
	return nil
}

// Reload stops and restarts a provider instance.
func (r *Registry) Reload(ctx context.Context, instanceID string) error {
	prov := r.Get(instanceID)
	if prov == nil {
		return fmt.Errorf("unknown provider instance: %s", instanceID)
	}
	if err := prov.Stop(ctx); err != nil {
		r.logger.Warn("provider stop during reload failed", "instance_id", instanceID, "error", err)
	}
	return prov.Start(ctx)
}

// Get returns the provider for the given instance id or, failing that, the
// first provider of the given domain. Returns nil when nothing matches.
func (r *Registry) Get(instanceIDOrDomain string) MusicProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if prov, ok := r.providers[instanceIDOrDomain]; ok {
		return prov
	}
	for _, prov := range r.providers {
		if prov.Domain() == instanceIDOrDomain {
			return prov
		}
	}
	return nil
}

// All returns all registered providers.
func (r *Registry) All() []MusicProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MusicProvider, 0, len(r.providers))
	for _, prov := range r.providers {
		out = append(out, prov)
	}
	return out
}

// OfDomain returns all providers of the given domain.
func (r *Registry) OfDomain(domain string) []MusicProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []MusicProvider
	for _, prov := range r.providers {
		if prov.Domain() == domain {
			out = append(out, prov)
		}
	}
	return out
}

// WithFeature returns all available providers declaring the capability.
func (r *Registry) WithFeature(feature Feature) []MusicProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []MusicProvider
	for _, prov := range r.providers {
		if prov.IsAvailable() && HasFeature(prov, feature) {
			out = append(out, prov)
		}
	}
	return out
}

// Throttle blocks until the per-provider rate limiter admits one request,
// or the context is cancelled.
func (r *Registry) Throttle(ctx context.Context, instanceID string) error {
	r.mu.RLock()
	limiter := r.limiters[instanceID]
	r.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// SetRateLimit overrides the request rate for one provider instance.
func (r *Registry) SetRateLimit(instanceID string, perSecond float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[instanceID] = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// StopAll stops every provider; used during shutdown.
func (r *Registry) StopAll(ctx context.Context) {
	for _, prov := range r.All() {
		if err := prov.Stop(ctx); err != nil {
			r.logger.Warn("provider stop failed", "instance_id", prov.InstanceID(), "error", err)
		}
	}
}

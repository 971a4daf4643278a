package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/remote"
	"mercator-hq/quotaguard/pkg/throttle"
	"mercator-hq/quotaguard/pkg/throttle/storage"
)

// ErrUnknownService is returned when no throttle exists for a service type.
var ErrUnknownService = errors.New("unknown service type")

// Registry holds one throttle per service type.
//
// Registry is thread-safe and can be used concurrently.
type Registry struct {
	store storage.Store
	opts  throttle.Options

	mu        sync.RWMutex
	throttles map[string]*throttle.Throttle
	services  map[string]config.ServiceConfig
	logger    *slog.Logger
}

// New creates a throttle for every entry in services, each seeded from store.
func New(ctx context.Context, services map[string]config.ServiceConfig, store storage.Store, opts throttle.Options) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("usage store cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		store:     store,
		opts:      opts,
		throttles: make(map[string]*throttle.Throttle, len(services)),
		services:  make(map[string]config.ServiceConfig, len(services)),
		logger:    logger.With("component", "registry"),
	}

	for _, name := range sortedNames(services) {
		if err := r.add(ctx, name, services[name]); err != nil {
			return nil, err
		}
	}

	r.logger.Info("registry initialized", "services", len(r.throttles))
	return r, nil
}

// add creates the throttle for one service. Callers hold mu or own r exclusively.
func (r *Registry) add(ctx context.Context, name string, svc config.ServiceConfig) error {
	th, err := r.newThrottle(ctx, name, svc)
	if err != nil {
		return err
	}
	r.throttles[name] = th
	r.services[name] = svc
	return nil
}

// newThrottle builds and seeds a throttle. It reads the store, so callers
// must not hold mu.
func (r *Registry) newThrottle(ctx context.Context, name string, svc config.ServiceConfig) (*throttle.Throttle, error) {
	th, err := throttle.New(ctx, svc.ThrottleConfig(name), r.store, r.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create throttle %q: %w", name, err)
	}
	return th, nil
}

// Get returns the throttle for serviceType.
func (r *Registry) Get(serviceType string) (*throttle.Throttle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	th, ok := r.throttles[serviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, serviceType)
	}
	return th, nil
}

// ServiceTypes returns the registered service types, sorted.
func (r *Registry) ServiceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.throttles))
	for name := range r.throttles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlushAll flushes every throttle. A failing throttle does not stop the
// others; all failures are joined into the returned error.
func (r *Registry) FlushAll(ctx context.Context) error {
	var errs []error
	for _, th := range r.ordered() {
		if err := th.FlushUsage(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshots returns the usage snapshot of every throttle, ordered by service type.
func (r *Registry) Snapshots() []throttle.Snapshot {
	throttles := r.ordered()
	snaps := make([]throttle.Snapshot, 0, len(throttles))
	for _, th := range throttles {
		snaps = append(snaps, th.Usage())
	}
	return snaps
}

// Summaries returns the monthly summary line of every throttle.
func (r *Registry) Summaries() []string {
	throttles := r.ordered()
	lines := make([]string, 0, len(throttles))
	for _, th := range throttles {
		lines = append(lines, th.MonthlySummary())
	}
	return lines
}

// History returns the durable daily records of serviceType within [from, to].
func (r *Registry) History(ctx context.Context, serviceType string, from, to time.Time) ([]storage.DailyUsageRecord, error) {
	if _, err := r.Get(serviceType); err != nil {
		return nil, err
	}
	return r.store.ListDailyUsage(ctx, serviceType, from, to)
}

// ApplyLimits brings the registry in line with a reloaded configuration.
// Existing throttles keep their counters and take the new limits; new
// service types get a fresh throttle. Service types missing from services
// are kept so their pending usage is still flushed, and a warning is logged.
func (r *Registry) ApplyLimits(ctx context.Context, services map[string]config.ServiceConfig) error {
	var errs []error

	// New throttles seed from the store; build them before taking the lock.
	added := make(map[string]*throttle.Throttle)
	for _, name := range sortedNames(services) {
		r.mu.RLock()
		_, ok := r.throttles[name]
		r.mu.RUnlock()
		if ok {
			continue
		}
		th, err := r.newThrottle(ctx, name, services[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		added[name] = th
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range sortedNames(services) {
		svc := services[name]

		th, ok := r.throttles[name]
		if !ok {
			th, ok = added[name]
			if !ok {
				continue
			}
			r.throttles[name] = th
			r.services[name] = svc
			r.logger.Info("service added", "service_type", name)
			continue
		}

		if err := th.SetLimits(svc.PerMinute, svc.PerMonth); err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", name, err))
			continue
		}
		r.services[name] = svc
	}

	for name := range r.throttles {
		if _, ok := services[name]; !ok {
			r.logger.Warn("service removed from configuration, keeping throttle until restart", "service_type", name)
		}
	}

	return errors.Join(errs...)
}

// RemoteClient builds an HTTP client for the remote endpoint configured on
// serviceType, classifying errors with the service's codes.
func (r *Registry) RemoteClient(serviceType string) (*remote.Client, error) {
	r.mu.RLock()
	svc, ok := r.services[serviceType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, serviceType)
	}
	if svc.Remote == nil {
		return nil, fmt.Errorf("service %q has no remote endpoint configured", serviceType)
	}

	headers := make(map[string]string, len(svc.Remote.Headers)+1)
	for k, v := range svc.Remote.Headers {
		headers[k] = v
	}
	if svc.Remote.APIKey != "" {
		headers[svc.Remote.APIKeyHeader] = svc.Remote.APIKey
	}

	return remote.NewClient(remote.ClientConfig{
		Service: serviceType,
		BaseURL: svc.Remote.BaseURL,
		Headers: headers,
		Timeout: svc.Remote.Timeout,
	}, remote.NewClassifier(remote.ClassifierConfig{
		RateLimitCodes:  svc.Remote.RateLimitCodes,
		StructuralCodes: svc.Remote.StructuralCodes,
	}))
}

// Ping checks that the usage store answers by summing the current month of
// the first service type.
func (r *Registry) Ping(ctx context.Context) error {
	names := r.ServiceTypes()
	if len(names) == 0 {
		return nil
	}
	now := time.Now()
	if r.opts.Clock != nil {
		now = r.opts.Clock.Now()
	}
	_, err := r.store.SumUsage(ctx, now.Year(), now.Month(), names[0])
	return err
}

// Close releases the usage store. Callers flush first.
func (r *Registry) Close() error {
	return r.store.Close()
}

func (r *Registry) ordered() []*throttle.Throttle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.throttles))
	for name := range r.throttles {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*throttle.Throttle, 0, len(names))
	for _, name := range names {
		out = append(out, r.throttles[name])
	}
	return out
}

func sortedNames(services map[string]config.ServiceConfig) []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

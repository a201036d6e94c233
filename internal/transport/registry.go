package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shineum/mailtrap-relay/internal/config"
)

// ErrUnknownTransport is returned by Open for a name nobody registered.
var ErrUnknownTransport = errors.New("unknown transport")

// Factory builds a transport from application configuration.
type Factory func(ctx context.Context, cfg *config.Config) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a transport available by name. It is intended to be called
// from the init function of each transport package and panics if the name is
// registered twice or the factory is nil.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("transport: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("transport: Register called twice for " + name)
	}
	registry[name] = factory
}

// Open builds the transport registered under name.
func Open(ctx context.Context, name string, cfg *config.Config) (Transport, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}

	t, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", name, err)
	}
	return t, nil
}

// Names returns the registered transport names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

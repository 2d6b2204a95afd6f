// Package creator defines the testbed-creator contract and the registry the
// CLI resolves creators from. A creator produces a testbed document from
// some source; the topology creator in this package grows one by walking
// the live network.
package creator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"topodisc/pkg/models"
)

// Creator produces a testbed document from its configured source.
type Creator interface {
	// Name identifies the creator in the registry and the CLI.
	Name() string

	// Generate builds the document. Implementations must honor context
	// cancellation on long-running work.
	Generate(ctx context.Context) (*models.TestbedDocument, error)
}

// Registry holds the available creators by name.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	creators map[string]Creator
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		creators: make(map[string]Creator),
	}
}

// Register adds a creator. Empty or duplicate names are errors.
func (r *Registry) Register(c Creator) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("register creator: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creators[name]; ok {
		return fmt.Errorf("register creator %q: already registered", name)
	}
	r.creators[name] = c
	r.logger.Debug("creator registered", zap.String("creator", name))
	return nil
}

// Get resolves a creator by name.
func (r *Registry) Get(name string) (Creator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creators[name]
	if !ok {
		return nil, fmt.Errorf("unknown creator %q (have %v)", name, r.names())
	}
	return c, nil
}

// Names returns the registered creator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.creators))
	for name := range r.creators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

package coordinator

import (
	"fmt"
	"sync"

	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
)

// Registry holds the configured gateway adapters in registration order and
// resolves the adapter for a payment system by asking each in turn.
type Registry struct {
	mu      sync.RWMutex
	plugins []plugin.Plugin
}

func NewRegistry(plugins ...plugin.Plugin) *Registry {
	return &Registry{plugins: plugins}
}

// Register appends an adapter. Adapters registered earlier win when more
// than one processes the same payment system.
func (r *Registry) Register(p plugin.Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// PluginFor returns the first registered adapter that processes the given
// payment system.
func (r *Registry) PluginFor(paymentSystemName string) (plugin.Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Processes(paymentSystemName) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: payment system %q", ErrNoPluginFound, paymentSystemName)
}

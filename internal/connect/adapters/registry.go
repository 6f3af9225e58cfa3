// Package adapters wires the per-platform connect implementations into
// a lookup registry.
package adapters

import (
	"github.com/pulseboard/pulseboard/internal/connect/domain"
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
)

type Registry struct {
	adapters map[integrationdomain.Platform]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[integrationdomain.Platform]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		registry.adapters[adapter.Platform()] = adapter
	}
	return registry
}

func (r *Registry) Adapter(platform integrationdomain.Platform) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrUnsupportedPlatform
	}
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, domain.ErrUnsupportedPlatform
	}
	return adapter, nil
}

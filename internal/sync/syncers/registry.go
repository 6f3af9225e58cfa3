// Package syncers holds the per-platform pull implementations and the
// registry the sync service resolves them from.
package syncers

import (
	integrationdomain "github.com/pulseboard/pulseboard/internal/integration/domain"
	"github.com/pulseboard/pulseboard/internal/sync/domain"
)

type Registry struct {
	syncers map[integrationdomain.Platform]domain.Syncer
}

func NewRegistry(syncers ...domain.Syncer) *Registry {
	m := make(map[integrationdomain.Platform]domain.Syncer, len(syncers))
	for _, s := range syncers {
		m[s.Platform()] = s
	}
	return &Registry{syncers: m}
}

func (r *Registry) Syncer(platform integrationdomain.Platform) (domain.Syncer, error) {
	s, ok := r.syncers[platform]
	if !ok {
		return nil, domain.ErrUnsupportedPlatform
	}
	return s, nil
}

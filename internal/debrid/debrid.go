// Package debrid defines the shared provider contract every debrid backend
// implements, plus a process-built registry (no package-level singleton,
// per the construction style the rest of this codebase uses for
// dependency wiring).
package debrid

import (
	"context"

	"github.com/voidwalker/annatar/internal/model"
)

// Provider is a debrid service capable of turning a set of candidate
// torrents into playable stream links. GetStreamLinks is a cooperative-
// cancel, pull-based generator: it pushes links to the returned channel
// until either it runs dry, maxResults is hit, or stop fires, then closes
// the channel. Callers that lose interest early must close(stop) so the
// provider's goroutine can unwind instead of leaking.
type Provider interface {
	ID() string
	Name() string
	ShortName() string

	// SharedCache reports whether this provider's cached-file state is
	// shared across all of its users (true) or scoped to one account's
	// library (false). The store's instant-file-set cache is keyed by
	// info-hash alone, whatever this returns.
	SharedCache() bool

	GetStreamLinks(ctx context.Context, torrents []model.Torrent, seasonEpisode []int, stop <-chan struct{}, maxResults int) (<-chan model.StreamLink, error)

	GetStreamForTorrent(ctx context.Context, torrent model.Torrent, seasonEpisode []int) (model.StreamLink, error)
}

// Factory builds a Provider bound to one user's API key and source IP.
type Factory func(apiKey, sourceIP string) Provider

// Registry maps provider ids to factories. Built once at process startup
// and handed to the addon; never a package-level var, so tests can
// construct their own registries with fakes.
type Registry struct {
	factories map[string]Factory
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(id string, factory Factory) {
	if _, exists := r.factories[id]; !exists {
		r.order = append(r.order, id)
	}
	r.factories[id] = factory
}

// Build instantiates the provider registered under id, or (nil, false) if
// no such provider is registered.
func (r *Registry) Build(id, apiKey, sourceIP string) (Provider, bool) {
	factory, ok := r.factories[id]
	if !ok {
		return nil, false
	}
	return factory(apiKey, sourceIP), true
}

// IDs returns every registered provider id in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

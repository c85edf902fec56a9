package realtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

type mergeLookup interface {
	HostOf(ctx context.Context, channel models.ClassChannel) (*models.ClassChannel, error)
	SourcesOf(ctx context.Context, host models.ClassChannel) ([]models.ClassChannel, error)
}

type pendingLookup interface {
	ListPendingByChannel(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error)
}

// Router resolves the set of channels a domain event must reach and fans it
// out through the subscription registry. A pickup raised for a merged-away
// class still reaches the display that now represents it.
type Router struct {
	registry *Registry
	merges   mergeLookup
	pickups  pendingLookup
	logger   *zap.Logger
}

// NewRouter constructs the merge-aware broadcast router.
func NewRouter(registry *Registry, merges mergeLookup, pickups pendingLookup, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{registry: registry, merges: merges, pickups: pickups, logger: logger}
}

// RouteAndPublish delivers the event to the channel itself and, when the
// channel is currently a merge source, to its host channel as well.
func (r *Router) RouteAndPublish(ctx context.Context, channel models.ClassChannel, event Event) error {
	r.registry.Publish(channel, event)

	host, err := r.merges.HostOf(ctx, channel)
	if err != nil {
		return fmt.Errorf("resolve host of %s: %w", channel, err)
	}
	if host != nil {
		r.registry.Publish(*host, event)
	}
	return nil
}

// NotifyMergeCreated refreshes the host display after a merge is persisted:
// it publishes the full updated source list, then replays every pending
// pickup of the source channel to the host in creation order. An error here
// means the merge creation as a whole must be treated as failed.
func (r *Router) NotifyMergeCreated(ctx context.Context, merge models.ClassMerge) error {
	host := merge.Host()

	sources, err := r.merges.SourcesOf(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve sources of %s: %w", host, err)
	}
	r.registry.Publish(host, NewMergeUpdateEvent(sources))

	pending, err := r.pickups.ListPendingByChannel(ctx, merge.Source())
	if err != nil {
		return fmt.Errorf("replay pending of %s: %w", merge.Source(), err)
	}
	for _, pickup := range pending {
		r.registry.Publish(host, NewNewPickupEvent(pickup))
	}

	r.logger.Info("merge broadcast",
		zap.String("source", merge.Source().String()),
		zap.String("host", host.String()),
		zap.Int("replayed", len(pending)))
	return nil
}

// NotifyMergeRemoved publishes the reduced source list to the former host.
func (r *Router) NotifyMergeRemoved(ctx context.Context, formerHost models.ClassChannel) error {
	sources, err := r.merges.SourcesOf(ctx, formerHost)
	if err != nil {
		return fmt.Errorf("resolve sources of %s: %w", formerHost, err)
	}
	r.registry.Publish(formerHost, NewMergeUpdateEvent(sources))
	return nil
}

// NotifyMergesCleared tells every channel with a live subscriber that no
// merges remain. Channels that never hosted a merge receive a harmless
// empty update.
func (r *Router) NotifyMergesCleared() {
	event := NewMergeUpdateEvent(nil)
	for _, channel := range r.registry.ActiveChannels() {
		r.registry.Publish(channel, event)
	}
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	"github.com/noah-isme/sma-pickup-api/internal/realtime"
)

type pendingResolver interface {
	PendingForDisplay(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error)
}

// DisplayService drives the subscribe/unsubscribe lifecycle of display
// connections, including the initial snapshot.
type DisplayService struct {
	registry *realtime.Registry
	resolver pendingResolver
	merges   mergeSources
	logger   *zap.Logger
}

// NewDisplayService constructs the display service.
func NewDisplayService(registry *realtime.Registry, resolver pendingResolver, merges mergeSources, logger *zap.Logger) *DisplayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisplayService{registry: registry, resolver: resolver, merges: merges, logger: logger}
}

// Attach registers a freshly opened connection so it receives heartbeats
// while waiting for its first subscribe frame.
func (s *DisplayService) Attach(session realtime.Session) {
	s.registry.Attach(session)
}

// Subscribe registers the session under the channel and sends it the pending
// view snapshot. The session is registered before the snapshot is computed: a
// write landing in between reaches the display twice rather than never, which
// keeps the snapshot consistent with every write committed before the
// subscribe was accepted.
func (s *DisplayService) Subscribe(ctx context.Context, session realtime.Session, channel models.ClassChannel) error {
	s.registry.Subscribe(session, channel)

	pending, err := s.resolver.PendingForDisplay(ctx, channel)
	if err != nil {
		s.registry.Unsubscribe(session)
		return err
	}
	sources, err := s.merges.SourcesOf(ctx, channel)
	if err != nil {
		s.registry.Unsubscribe(session)
		return err
	}

	initial := realtime.NewInitialEvent(pending, sources, time.Now().UTC())
	if err := session.Send(initial); err != nil {
		s.registry.Unsubscribe(session)
		return err
	}

	s.logger.Debug("display snapshot delivered",
		zap.String("channel", channel.String()),
		zap.Int("pending", len(pending)),
		zap.Int("merged", len(sources)))
	return nil
}

// Unsubscribe detaches the session from its channel. Idempotent; invoked on
// disconnect or transport error.
func (s *DisplayService) Unsubscribe(session realtime.Session) {
	s.registry.Unsubscribe(session)
}

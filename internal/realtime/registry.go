package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

// Session is one live display transport endpoint. Send must report an error
// once the underlying transport is no longer open.
type Session interface {
	Send(event Event) error
	Close() error
}

// Metrics receives registry instrumentation callbacks. Implemented by the
// metrics service; a nil Metrics disables instrumentation.
type Metrics interface {
	ObserveSessions(count int)
	ObserveEventPublished(eventType string)
}

// Registry maps class channels to the set of currently connected display
// sessions. It owns session membership for the lifetime of each connection.
type Registry struct {
	logger    *zap.Logger
	metrics   Metrics
	heartbeat time.Duration

	mu       sync.Mutex
	channels map[models.ClassChannel]map[Session]struct{}
	sessions map[Session]models.ClassChannel
}

// NewRegistry constructs an empty registry.
func NewRegistry(heartbeat time.Duration, metrics Metrics, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Registry{
		logger:    logger,
		metrics:   metrics,
		heartbeat: heartbeat,
		channels:  make(map[models.ClassChannel]map[Session]struct{}),
		sessions:  make(map[Session]models.ClassChannel),
	}
}

// Attach tracks a connection that has not yet subscribed to a channel, so
// heartbeats cover the whole open lifetime of the transport. Subscribe moves
// the session onto its channel; Unsubscribe releases it either way.
func (r *Registry) Attach(s Session) {
	r.mu.Lock()
	if _, ok := r.sessions[s]; !ok {
		r.sessions[s] = models.ClassChannel{}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.observeSessions(count)
}

// Subscribe registers the session under the channel, replacing any prior
// subscription. A session is subscribed to exactly one channel at a time.
func (r *Registry) Subscribe(s Session, channel models.ClassChannel) {
	r.mu.Lock()
	r.detachLocked(s)
	set, ok := r.channels[channel]
	if !ok {
		set = make(map[Session]struct{})
		r.channels[channel] = set
	}
	set[s] = struct{}{}
	r.sessions[s] = channel
	count := len(r.sessions)
	r.mu.Unlock()

	r.observeSessions(count)
	r.logger.Debug("display subscribed", zap.String("channel", channel.String()))
}

// Unsubscribe removes the session from its current channel. No-op when the
// session was never subscribed; calling it twice is harmless.
func (r *Registry) Unsubscribe(s Session) {
	r.mu.Lock()
	r.detachLocked(s)
	count := len(r.sessions)
	r.mu.Unlock()

	r.observeSessions(count)
}

func (r *Registry) detachLocked(s Session) {
	channel, ok := r.sessions[s]
	if !ok {
		return
	}
	delete(r.sessions, s)
	if set, ok := r.channels[channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.channels, channel)
		}
	}
}

// Publish delivers the event to every session currently registered under the
// channel. Sessions whose transport is no longer open are dropped lazily; a
// channel with zero subscribers is a silent no-op.
func (r *Registry) Publish(channel models.ClassChannel, event Event) {
	r.mu.Lock()
	targets := make([]Session, 0, len(r.channels[channel]))
	for s := range r.channels[channel] {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(event); err != nil {
			r.logger.Debug("dropping dead display session",
				zap.String("channel", channel.String()),
				zap.Error(err))
			r.Unsubscribe(s)
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveEventPublished(event.EventType())
	}
}

// Broadcast sends the event to every live session, including attached
// connections that have not subscribed yet.
func (r *Registry) Broadcast(event Event) {
	r.mu.Lock()
	targets := make([]Session, 0, len(r.sessions))
	for s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	for _, s := range targets {
		if err := s.Send(event); err != nil {
			r.logger.Debug("dropping dead display session", zap.Error(err))
			r.Unsubscribe(s)
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveEventPublished(event.EventType())
	}
}

// ActiveChannels lists channels that currently have at least one subscriber.
func (r *Registry) ActiveChannels() []models.ClassChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	channels := make([]models.ClassChannel, 0, len(r.channels))
	for channel := range r.channels {
		channels = append(channels, channel)
	}
	return channels
}

// SessionCount reports the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run emits heartbeats on a fixed cadence until the context is cancelled.
// Heartbeat failures are not probed further: a session counts as dead only
// when its transport reports closure on write.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Broadcast(NewHeartbeatEvent())
		}
	}
}

// Shutdown closes every live session and empties the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.channels = make(map[models.ClassChannel]map[Session]struct{})
	r.sessions = make(map[Session]models.ClassChannel)
	r.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	r.observeSessions(0)
}

func (r *Registry) observeSessions(count int) {
	if r.metrics != nil {
		r.metrics.ObserveSessions(count)
	}
}

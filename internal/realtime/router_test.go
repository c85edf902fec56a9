package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

type mergeLookupStub struct {
	hosts      map[models.ClassChannel]models.ClassChannel
	sources    map[models.ClassChannel][]models.ClassChannel
	hostErr    error
	sourcesErr error
}

func (s *mergeLookupStub) HostOf(ctx context.Context, channel models.ClassChannel) (*models.ClassChannel, error) {
	if s.hostErr != nil {
		return nil, s.hostErr
	}
	if host, ok := s.hosts[channel]; ok {
		return &host, nil
	}
	return nil, nil
}

func (s *mergeLookupStub) SourcesOf(ctx context.Context, host models.ClassChannel) ([]models.ClassChannel, error) {
	if s.sourcesErr != nil {
		return nil, s.sourcesErr
	}
	return s.sources[host], nil
}

type pendingLookupStub struct {
	pending map[models.ClassChannel][]models.Pickup
	err     error
}

func (s *pendingLookupStub) ListPendingByChannel(ctx context.Context, channel models.ClassChannel) ([]models.Pickup, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pending[channel], nil
}

func TestRouterPublishesToChannelOnly(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	blue := chanOf(1, "Blue")
	red := chanOf(1, "Red")

	blueSession := &fakeSession{}
	redSession := &fakeSession{}
	reg.Subscribe(blueSession, blue)
	reg.Subscribe(redSession, red)

	router := NewRouter(reg, &mergeLookupStub{}, &pendingLookupStub{}, nil)

	err := router.RouteAndPublish(context.Background(), blue, NewHeartbeatEvent())
	require.NoError(t, err)

	assert.Len(t, blueSession.received(), 1)
	assert.Empty(t, redSession.received())
}

func TestRouterRedirectsToHostOfMergedSource(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	blue := chanOf(1, "Blue")
	red := chanOf(1, "Red")

	redSession := &fakeSession{}
	reg.Subscribe(redSession, red)

	merges := &mergeLookupStub{hosts: map[models.ClassChannel]models.ClassChannel{blue: red}}
	router := NewRouter(reg, merges, &pendingLookupStub{}, nil)

	pickup := models.Pickup{ID: "p-1", Year: 1, ClassLabel: "Blue", Status: models.PickupStatusPending}
	err := router.RouteAndPublish(context.Background(), blue, NewNewPickupEvent(pickup))
	require.NoError(t, err)

	events := redSession.received()
	require.Len(t, events, 1)
	got, ok := events[0].(NewPickupEvent)
	require.True(t, ok)
	assert.Equal(t, "p-1", got.Pickup.ID)
}

func TestRouterHostLookupFailure(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	router := NewRouter(reg, &mergeLookupStub{hostErr: errors.New("db down")}, &pendingLookupStub{}, nil)

	err := router.RouteAndPublish(context.Background(), chanOf(1, "Blue"), NewHeartbeatEvent())
	assert.Error(t, err)
}

func TestRouterNotifyMergeCreatedReplaysPending(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	blue := chanOf(1, "Blue")
	red := chanOf(1, "Red")

	redSession := &fakeSession{}
	reg.Subscribe(redSession, red)

	first := models.Pickup{ID: "p-1", Year: 1, ClassLabel: "Blue"}
	second := models.Pickup{ID: "p-2", Year: 1, ClassLabel: "Blue"}

	merges := &mergeLookupStub{sources: map[models.ClassChannel][]models.ClassChannel{red: {blue}}}
	pending := &pendingLookupStub{pending: map[models.ClassChannel][]models.Pickup{blue: {first, second}}}
	router := NewRouter(reg, merges, pending, nil)

	merge := models.ClassMerge{SourceYear: 1, SourceLabel: "Blue", HostYear: 1, HostLabel: "Red"}
	err := router.NotifyMergeCreated(context.Background(), merge)
	require.NoError(t, err)

	events := redSession.received()
	require.Len(t, events, 3)

	update, ok := events[0].(MergeUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, []models.ClassChannel{blue}, update.MergedClasses)

	p1, ok := events[1].(NewPickupEvent)
	require.True(t, ok)
	assert.Equal(t, "p-1", p1.Pickup.ID)

	p2, ok := events[2].(NewPickupEvent)
	require.True(t, ok)
	assert.Equal(t, "p-2", p2.Pickup.ID)
}

func TestRouterNotifyMergeCreatedPendingLookupFailure(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	merges := &mergeLookupStub{}
	pending := &pendingLookupStub{err: errors.New("db down")}
	router := NewRouter(reg, merges, pending, nil)

	merge := models.ClassMerge{SourceYear: 1, SourceLabel: "Blue", HostYear: 1, HostLabel: "Red"}
	err := router.NotifyMergeCreated(context.Background(), merge)
	assert.Error(t, err)
}

func TestRouterNotifyMergeRemoved(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	red := chanOf(1, "Red")
	redSession := &fakeSession{}
	reg.Subscribe(redSession, red)

	router := NewRouter(reg, &mergeLookupStub{}, &pendingLookupStub{}, nil)
	err := router.NotifyMergeRemoved(context.Background(), red)
	require.NoError(t, err)

	events := redSession.received()
	require.Len(t, events, 1)
	update, ok := events[0].(MergeUpdateEvent)
	require.True(t, ok)
	assert.Empty(t, update.MergedClasses)
	assert.NotNil(t, update.MergedClasses)
}

func TestRouterNotifyMergesCleared(t *testing.T) {
	reg := NewRegistry(time.Second, nil, nil)
	s1 := &fakeSession{}
	s2 := &fakeSession{}
	reg.Subscribe(s1, chanOf(1, "Blue"))
	reg.Subscribe(s2, chanOf(2, "Red"))

	router := NewRouter(reg, &mergeLookupStub{}, &pendingLookupStub{}, nil)
	router.NotifyMergesCleared()

	for _, s := range []*fakeSession{s1, s2} {
		events := s.received()
		require.Len(t, events, 1)
		update, ok := events[0].(MergeUpdateEvent)
		require.True(t, ok)
		assert.Empty(t, update.MergedClasses)
	}
}

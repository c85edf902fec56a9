package realtime

import (
	"time"

	"github.com/noah-isme/sma-pickup-api/internal/models"
)

// Event types carried on the display socket.
const (
	EventTypeInitial      = "initial"
	EventTypeNewPickup    = "new_pickup"
	EventTypeAcknowledged = "pickup_acknowledged"
	EventTypeMergeUpdate  = "merge_update"
	EventTypeHeartbeat    = "heartbeat"
)

// Event is the closed set of messages delivered to display connections.
// Each variant carries its own required fields so delivery code can match
// exhaustively instead of inspecting loose maps.
type Event interface {
	EventType() string
}

// InitialEvent is the snapshot sent to a connection right after it subscribes.
type InitialEvent struct {
	Type          string                `json:"type"`
	Pickups       []models.Pickup       `json:"pickups"`
	MergedClasses []models.ClassChannel `json:"mergedClasses"`
	ServerTime    time.Time             `json:"serverTime"`
}

// NewInitialEvent builds the subscribe snapshot. Nil slices are normalised so
// displays always receive JSON arrays.
func NewInitialEvent(pickups []models.Pickup, merged []models.ClassChannel, serverTime time.Time) InitialEvent {
	if pickups == nil {
		pickups = []models.Pickup{}
	}
	if merged == nil {
		merged = []models.ClassChannel{}
	}
	return InitialEvent{Type: EventTypeInitial, Pickups: pickups, MergedClasses: merged, ServerTime: serverTime}
}

func (e InitialEvent) EventType() string { return EventTypeInitial }

// NewPickupEvent announces a freshly raised pickup.
type NewPickupEvent struct {
	Type   string        `json:"type"`
	Pickup models.Pickup `json:"pickup"`
}

func NewNewPickupEvent(pickup models.Pickup) NewPickupEvent {
	return NewPickupEvent{Type: EventTypeNewPickup, Pickup: pickup}
}

func (e NewPickupEvent) EventType() string { return EventTypeNewPickup }

// AcknowledgedEvent clears a pickup from the display.
type AcknowledgedEvent struct {
	Type     string `json:"type"`
	PickupID string `json:"pickupId"`
}

func NewAcknowledgedEvent(pickupID string) AcknowledgedEvent {
	return AcknowledgedEvent{Type: EventTypeAcknowledged, PickupID: pickupID}
}

func (e AcknowledgedEvent) EventType() string { return EventTypeAcknowledged }

// MergeUpdateEvent refreshes a display's combined-classes header.
type MergeUpdateEvent struct {
	Type          string                `json:"type"`
	MergedClasses []models.ClassChannel `json:"mergedClasses"`
}

func NewMergeUpdateEvent(merged []models.ClassChannel) MergeUpdateEvent {
	if merged == nil {
		merged = []models.ClassChannel{}
	}
	return MergeUpdateEvent{Type: EventTypeMergeUpdate, MergedClasses: merged}
}

func (e MergeUpdateEvent) EventType() string { return EventTypeMergeUpdate }

// HeartbeatEvent keeps intermediaries from reaping idle display sockets.
type HeartbeatEvent struct {
	Type string `json:"type"`
}

func NewHeartbeatEvent() HeartbeatEvent {
	return HeartbeatEvent{Type: EventTypeHeartbeat}
}

func (e HeartbeatEvent) EventType() string { return EventTypeHeartbeat }

// SubscribeRequest is the only inbound message a display may send.
type SubscribeRequest struct {
	Type      string `json:"type"`
	Year      int    `json:"year"`
	ClassName string `json:"className"`
}

// Channel converts the request into its channel identity.
func (r SubscribeRequest) Channel() models.ClassChannel {
	return models.ClassChannel{Year: r.Year, Label: r.ClassName}
}

// Valid reports whether the message is a well-formed subscribe.
func (r SubscribeRequest) Valid() bool {
	return r.Type == "subscribe" && r.Year > 0 && r.ClassName != ""
}

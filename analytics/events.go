package analytics

import (
	"fmt"
	"time"

	"github.com/SpeechifyInc/analytics-go/pkg/value"
)

// EventType is the canonical type tag for dispatched events.
type EventType string

const (
	EventTypeTrack    EventType = "track"
	EventTypeIdentify EventType = "identify"
	EventTypeScreen   EventType = "screen"
	EventTypeGroup    EventType = "group"
	EventTypeAlias    EventType = "alias"
)

var validEventTypes = []EventType{
	EventTypeTrack,
	EventTypeIdentify,
	EventTypeScreen,
	EventTypeGroup,
	EventTypeAlias,
}

// IsValid reports whether the value matches the canonical event type enum.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts the raw string to EventType.
func ParseEventType(raw string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == raw {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", raw)
}

// Envelope carries the fields shared by every event variant. The anonymous id
// is snapshotted from the identity store at construction time.
type Envelope struct {
	MessageID   string    `json:"messageId"`
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	AnonymousID string    `json:"anonymousId"`
}

// EventType returns the variant tag fixed at construction.
func (e Envelope) EventType() EventType {
	return e.Type
}

// Common returns the shared envelope fields.
func (e Envelope) Common() Envelope {
	return e
}

// Event is the closed set of dispatchable event variants. Events are values:
// enrichment produces a new event, never an in-place mutation visible to
// other readers.
type Event interface {
	EventType() EventType
	Common() Envelope
	sealedEvent()
}

// Track records a named action with optional properties.
type Track struct {
	Envelope
	Event      string      `json:"event"`
	Properties value.Value `json:"properties"`
}

func (Track) sealedEvent() {}

// WithProperties returns a copy with the properties replaced.
func (t Track) WithProperties(properties value.Value) Track {
	t.Properties = properties
	return t
}

// Identify associates the current user with an id and/or traits.
type Identify struct {
	Envelope
	UserID string      `json:"userId,omitempty"`
	Traits value.Value `json:"traits"`
}

func (Identify) sealedEvent() {}

// WithTraits returns a copy with the traits replaced.
func (i Identify) WithTraits(traits value.Value) Identify {
	i.Traits = traits
	return i
}

// Screen records a screen or page view.
type Screen struct {
	Envelope
	Name       string      `json:"name"`
	Category   string      `json:"category,omitempty"`
	Properties value.Value `json:"properties"`
}

func (Screen) sealedEvent() {}

// WithProperties returns a copy with the properties replaced.
func (s Screen) WithProperties(properties value.Value) Screen {
	s.Properties = properties
	return s
}

// Group associates the current user with a group.
type Group struct {
	Envelope
	GroupID string      `json:"groupId"`
	Traits  value.Value `json:"traits"`
}

func (Group) sealedEvent() {}

// WithTraits returns a copy with the traits replaced.
func (g Group) WithTraits(traits value.Value) Group {
	g.Traits = traits
	return g
}

// Alias links a new user id to the id it replaces. PreviousID is the user id
// in effect before the aliasing call mutated identity state.
type Alias struct {
	Envelope
	NewID      string `json:"userId"`
	PreviousID string `json:"previousId"`
}

func (Alias) sealedEvent() {}

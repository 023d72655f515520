package analytics

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/metrics"
	"github.com/SpeechifyInc/analytics-go/pkg/serializer"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
)

const (
	reasonInvalidEvent  = "invalid_event"
	reasonSerialization = "serialization_error"
)

// Params configures a Client. Pipeline and Logger are required; everything
// else has a working default.
type Params struct {
	Pipeline     Pipeline
	Logger       *logger.Logger
	Serializer   serializer.Serializer
	Reporter     Reporter
	Storage      IdentityStorage
	Metrics      *metrics.DispatchMetrics
	WriteKey     string
	Now          func() time.Time
	NewMessageID func() string
}

// Client is the public entry surface: it normalizes caller input into
// canonical events, synchronizes identity state, applies enrichment and
// forwards to the delivery pipeline. All methods are safe for concurrent use;
// events dispatched by a single goroutine reach the pipeline in call order.
type Client struct {
	pipeline     Pipeline
	logg         *logger.Logger
	serializer   serializer.Serializer
	reporter     Reporter
	metrics      *metrics.DispatchMetrics
	identity     *identityStore
	storage      IdentityStorage
	writeKey     string
	now          func() time.Time
	newMessageID func() string

	mu          sync.RWMutex
	enrichments []Enrichment
}

// New wires the client dependencies and loads (or generates) the identity
// snapshot.
func New(params Params) (*Client, error) {
	if params.Pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery pipeline required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	engine := params.Serializer
	if engine == nil {
		engine = serializer.NewJSON()
	}
	reporter := params.Reporter
	if reporter == nil {
		reporter = NewLogReporter(params.Logger, params.Metrics)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	newMessageID := params.NewMessageID
	if newMessageID == nil {
		newMessageID = uuid.NewString
	}

	c := &Client{
		pipeline:     params.Pipeline,
		logg:         params.Logger,
		serializer:   engine,
		reporter:     reporter,
		metrics:      params.Metrics,
		storage:      params.Storage,
		writeKey:     params.WriteKey,
		now:          now,
		newMessageID: newMessageID,
	}

	identity, err := newIdentityStore(params.Storage, nil, func(storageErr error) {
		c.reporter.Report(context.Background(), storageErr, false)
	})
	if err != nil {
		return nil, err
	}
	c.identity = identity

	return c, nil
}

// Add registers a pipeline-wide enrichment. Registration order is the
// application order.
func (c *Client) Add(fn Enrichment) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrichments = append(c.enrichments, fn)
}

// WriteKey returns the configured source write key.
func (c *Client) WriteKey() string {
	return c.writeKey
}

// Identity returns the current identity snapshot.
func (c *Client) Identity() IdentitySnapshot {
	return c.identity.snapshot()
}

// ResetIdentity clears the user id and traits and regenerates the anonymous
// id.
func (c *Client) ResetIdentity() {
	c.identity.apply(identityAction{kind: actionReset})
}

// Close shuts down the pipeline and, when the identity storage owns
// resources, closes it too.
func (c *Client) Close() error {
	err := c.pipeline.Close()
	if closer, ok := c.storage.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

// Track dispatches a payload-less track event. Equivalent to TrackMap with a
// nil properties map.
func (c *Client) Track(ctx context.Context, event string, enrichments ...Enrichment) {
	c.TrackMap(ctx, event, nil, enrichments...)
}

// TrackMap dispatches a track event with loosely-typed properties. A
// serialization failure is reported non-fatally and the event is dispatched
// with an absent payload.
func (c *Client) TrackMap(ctx context.Context, event string, properties map[string]any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeTrack, false, untypedInput(properties))
	if !ok {
		return
	}
	c.trackEvent(ctx, event, payload, enrichments, false)
}

// TrackTyped dispatches a track event with a statically-typed properties
// value. A serialization failure is reported fatally and the event is not
// dispatched.
func (c *Client) TrackTyped(ctx context.Context, event string, properties any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeTrack, true, properties)
	if !ok {
		return
	}
	c.trackEvent(ctx, event, payload, enrichments, true)
}

// Screen dispatches a payload-less screen event.
func (c *Client) Screen(ctx context.Context, name string, enrichments ...Enrichment) {
	c.ScreenMap(ctx, name, "", nil, enrichments...)
}

// ScreenMap dispatches a screen event with loosely-typed properties.
func (c *Client) ScreenMap(ctx context.Context, name, category string, properties map[string]any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeScreen, false, untypedInput(properties))
	if !ok {
		return
	}
	c.screenEvent(ctx, name, category, payload, enrichments, false)
}

// ScreenTyped dispatches a screen event with statically-typed properties.
func (c *Client) ScreenTyped(ctx context.Context, name, category string, properties any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeScreen, true, properties)
	if !ok {
		return
	}
	c.screenEvent(ctx, name, category, payload, enrichments, true)
}

// Group dispatches a payload-less group event.
func (c *Client) Group(ctx context.Context, groupID string, enrichments ...Enrichment) {
	c.GroupMap(ctx, groupID, nil, enrichments...)
}

// GroupMap dispatches a group event with loosely-typed traits.
func (c *Client) GroupMap(ctx context.Context, groupID string, traits map[string]any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeGroup, false, untypedInput(traits))
	if !ok {
		return
	}
	c.groupEvent(ctx, groupID, payload, enrichments, false)
}

// GroupTyped dispatches a group event with statically-typed traits.
func (c *Client) GroupTyped(ctx context.Context, groupID string, traits any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeGroup, true, traits)
	if !ok {
		return
	}
	c.groupEvent(ctx, groupID, payload, enrichments, true)
}

// IdentifyUser sets the user id, leaving traits untouched, and dispatches the
// identify event.
func (c *Client) IdentifyUser(ctx context.Context, userID string, enrichments ...Enrichment) {
	c.identifyEvent(ctx, identityAction{kind: actionSetUserID, userID: userID}, userID, value.Null(), enrichments)
}

// IdentifyTraits replaces the stored traits wholesale, leaving the user id
// untouched, and dispatches the identify event.
func (c *Client) IdentifyTraits(ctx context.Context, traits map[string]any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeIdentify, false, untypedInput(traits))
	if !ok {
		return
	}
	c.identifyEvent(ctx, identityAction{kind: actionSetTraits, traits: payload}, "", payload, enrichments)
}

// IdentifyTraitsTyped is the statically-typed form of IdentifyTraits. On
// serialization failure neither identity state nor the pipeline is touched.
func (c *Client) IdentifyTraitsTyped(ctx context.Context, traits any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeIdentify, true, traits)
	if !ok {
		return
	}
	c.identifyEvent(ctx, identityAction{kind: actionSetTraits, traits: payload}, "", payload, enrichments)
}

// Identify sets the user id and, when a traits map is supplied, replaces the
// stored traits in the same atomic action.
func (c *Client) Identify(ctx context.Context, userID string, traits map[string]any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeIdentify, false, untypedInput(traits))
	if !ok {
		return
	}
	action := identityAction{kind: actionSetUserIDAndTraits, userID: userID, traits: payload, hasTraits: traits != nil}
	c.identifyEvent(ctx, action, userID, payload, enrichments)
}

// IdentifyTyped is the statically-typed form of Identify.
func (c *Client) IdentifyTyped(ctx context.Context, userID string, traits any, enrichments ...Enrichment) {
	payload, ok := c.serializePayload(ctx, EventTypeIdentify, true, traits)
	if !ok {
		return
	}
	action := identityAction{kind: actionSetUserIDAndTraits, userID: userID, traits: payload, hasTraits: traits != nil}
	c.identifyEvent(ctx, action, userID, payload, enrichments)
}

// Alias replaces the current user id with newID and dispatches an alias event
// carrying the id being replaced.
func (c *Client) Alias(ctx context.Context, newID string, enrichments ...Enrichment) {
	if strings.TrimSpace(newID) == "" {
		c.rejectInvalid(ctx, EventTypeAlias, false, "alias requires a non-empty new id")
		return
	}

	before, after := c.identity.apply(identityAction{kind: actionSetUserID, userID: newID})
	ev := Alias{
		Envelope:   c.newEnvelope(EventTypeAlias, after.AnonymousID),
		NewID:      newID,
		PreviousID: before.UserID,
	}
	c.dispatch(ctx, ev, enrichments)
}

func (c *Client) trackEvent(ctx context.Context, event string, payload value.Value, scoped []Enrichment, fatal bool) {
	if strings.TrimSpace(event) == "" {
		c.rejectInvalid(ctx, EventTypeTrack, fatal, "track requires a non-empty event name")
		return
	}
	ev := Track{
		Envelope:   c.newEnvelope(EventTypeTrack, c.identity.snapshot().AnonymousID),
		Event:      event,
		Properties: payload,
	}
	c.dispatch(ctx, ev, scoped)
}

func (c *Client) screenEvent(ctx context.Context, name, category string, payload value.Value, scoped []Enrichment, fatal bool) {
	if strings.TrimSpace(name) == "" {
		c.rejectInvalid(ctx, EventTypeScreen, fatal, "screen requires a non-empty name")
		return
	}
	ev := Screen{
		Envelope:   c.newEnvelope(EventTypeScreen, c.identity.snapshot().AnonymousID),
		Name:       name,
		Category:   category,
		Properties: payload,
	}
	c.dispatch(ctx, ev, scoped)
}

func (c *Client) groupEvent(ctx context.Context, groupID string, payload value.Value, scoped []Enrichment, fatal bool) {
	if strings.TrimSpace(groupID) == "" {
		c.rejectInvalid(ctx, EventTypeGroup, fatal, "group requires a non-empty group id")
		return
	}
	ev := Group{
		Envelope: c.newEnvelope(EventTypeGroup, c.identity.snapshot().AnonymousID),
		GroupID:  groupID,
		Traits:   payload,
	}
	c.dispatch(ctx, ev, scoped)
}

// identifyEvent applies the identity action before the envelope snapshots the
// anonymous id, so the emitted event reflects post-action state.
func (c *Client) identifyEvent(ctx context.Context, action identityAction, userID string, traits value.Value, scoped []Enrichment) {
	_, after := c.identity.apply(action)
	ev := Identify{
		Envelope: c.newEnvelope(EventTypeIdentify, after.AnonymousID),
		UserID:   userID,
		Traits:   traits,
	}
	c.dispatch(ctx, ev, scoped)
}

// serializePayload runs the engine and applies the per-input-shape failure
// policy: the typed path reports fatally and aborts, the untyped path reports
// non-fatally and proceeds with an absent payload.
func (c *Client) serializePayload(ctx context.Context, eventType EventType, typed bool, input any) (value.Value, bool) {
	canonical, err := c.serializer.Serialize(input)
	if err == nil && !canonical.IsNull() && canonical.Kind() != value.KindObject {
		err = pkgerrors.New(pkgerrors.CodeSerialization, "payload must serialize to an object").
			WithDetails(canonical.Kind().String())
	}
	if err == nil {
		return canonical, true
	}

	if typed {
		c.reporter.Report(ctx, err, true)
		c.metrics.IncRejected(string(eventType), reasonSerialization)
		return value.Null(), false
	}
	c.reporter.Report(ctx, err, false)
	return value.Null(), true
}

func (c *Client) rejectInvalid(ctx context.Context, eventType EventType, fatal bool, message string) {
	c.reporter.Report(ctx, pkgerrors.New(pkgerrors.CodeInvalidEvent, message), fatal)
	c.metrics.IncRejected(string(eventType), reasonInvalidEvent)
}

func (c *Client) newEnvelope(eventType EventType, anonymousID string) Envelope {
	return Envelope{
		MessageID:   c.newMessageID(),
		Timestamp:   c.now().UTC(),
		Type:        eventType,
		AnonymousID: anonymousID,
	}
}

// dispatch applies the enrichment chains and hands the surviving event to the
// pipeline. Pipeline errors are reported, never returned.
func (c *Client) dispatch(ctx context.Context, ev Event, scoped []Enrichment) {
	eventType := ev.EventType()

	enriched, keep := applyEnrichments(c, ev, c.snapshotEnrichments(), scoped)
	if !keep {
		c.metrics.IncDropped(string(eventType))
		return
	}

	if err := c.pipeline.Process(ctx, enriched, scoped); err != nil {
		c.metrics.IncPipelineError()
		c.reporter.Report(ctx, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pipeline hand-off"), false)
		return
	}
	c.metrics.IncDispatched(string(eventType))
}

func (c *Client) snapshotEnrichments() []Enrichment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.enrichments) == 0 {
		return nil
	}
	snapshot := make([]Enrichment, len(c.enrichments))
	copy(snapshot, c.enrichments)
	return snapshot
}

// untypedInput keeps a nil map indistinguishable from an absent payload.
func untypedInput(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

// pipeline/pubsub/publisher.go
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/SpeechifyInc/analytics-go/analytics"
	"github.com/SpeechifyInc/analytics-go/pkg/config"
	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/metrics"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultPublishTimeout = 15 * time.Second

// Message attribute keys carried alongside the event payload so downstream
// consumers can route without decoding the body.
const (
	attrMessageID = "messageId"
	attrEventType = "type"
	attrWriteKey  = "writeKey"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.pub.Publish(ctx, msg)
}

func (g *gcpPublisher) Stop() {
	g.pub.Stop()
}

// Pipeline publishes events to a Pub/Sub topic. Publishing is asynchronous:
// Process hands the message to the publisher and returns; delivery failures
// are logged and counted, never returned to the event producer. Messages
// share an ordering key per anonymous id so a single producer's stream is
// delivered in hand-off order.
type Pipeline struct {
	client   *gcppubsub.Client
	pub      publisher
	writeKey string
	timeout  time.Duration
	logg     *logger.Logger
	metrics  *metrics.DispatchMetrics

	wg sync.WaitGroup
}

// New creates a Pub/Sub v2 pipeline and, when configured, verifies the
// events topic exists before accepting traffic.
func New(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, writeKey string, logg *logger.Logger, m *metrics.DispatchMetrics) (*Pipeline, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gcp project id is required")
	}
	if strings.TrimSpace(cfg.EventsTopic) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pubsub events topic is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	psClient, err := gcppubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating pubsub client")
	}

	fullName := topicResourceName(gcp.ProjectID, cfg.EventsTopic)
	if cfg.VerifyTopic {
		if err := ensureTopicExists(ctx, psClient, cfg.EventsTopic, fullName); err != nil {
			_ = psClient.Close()
			return nil, err
		}
	}

	pub := psClient.Publisher(fullName)
	pub.EnableMessageOrdering = true

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	logg.Info(ctx, "pubsub pipeline initialized")

	return &Pipeline{
		client:   psClient,
		pub:      &gcpPublisher{pub: pub},
		writeKey: writeKey,
		timeout:  timeout,
		logg:     logg,
		metrics:  m,
	}, nil
}

func ensureTopicExists(ctx context.Context, client *gcppubsub.Client, name, fullName string) error {
	_, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	if err != nil {
		// v2 uses gRPC errors; NotFound means the topic doesn't exist.
		if status.Code(err) == codes.NotFound {
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("topic %q does not exist", name))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("checking topic %q", name))
	}
	return nil
}

// Process encodes the event and publishes it. Call-scoped enrichments have
// already been applied by the time an event reaches the transport; closures
// cannot cross the wire, so the slice is ignored here.
func (p *Pipeline) Process(ctx context.Context, ev analytics.Event, _ []analytics.Enrichment) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "encoding event")
	}

	env := ev.Common()
	msg := &gcppubsub.Message{
		Data:        data,
		OrderingKey: env.AnonymousID,
		Attributes: map[string]string{
			attrMessageID: env.MessageID,
			attrEventType: string(env.Type),
			attrWriteKey:  p.writeKey,
		},
	}

	result := p.pub.Publish(ctx, msg)
	if result == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "publisher returned nil result")
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		waitCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if _, err := result.Get(waitCtx); err != nil {
			p.metrics.IncPipelineError()
			logCtx := p.logg.WithMessageID(context.Background(), env.MessageID)
			logCtx = p.logg.WithEventType(logCtx, string(env.Type))
			p.logg.Error(logCtx, "publishing event", err)
		}
	}()

	return nil
}

// Close flushes pending publishes and releases the client.
func (p *Pipeline) Close() error {
	p.pub.Stop()
	p.wg.Wait()
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", strings.TrimSpace(projectID), n)
}

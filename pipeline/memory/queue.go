package memory

import (
	"context"
	"sync"

	"github.com/SpeechifyInc/analytics-go/analytics"
	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
)

const defaultQueueSize = 1000

// Handler defines how queued events are consumed.
type Handler interface {
	Handle(ctx context.Context, ev analytics.Event, enrichments []analytics.Enrichment) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, ev analytics.Event, enrichments []analytics.Enrichment) error

// Handle calls the underlying function.
func (fn HandlerFunc) Handle(ctx context.Context, ev analytics.Event, enrichments []analytics.Enrichment) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, ev, enrichments)
}

type item struct {
	ev          analytics.Event
	enrichments []analytics.Enrichment
}

// Queue is an in-process delivery pipeline backed by a bounded channel and a
// single drain goroutine, so events keep their hand-off order. Process never
// blocks: a full queue is a dependency error the caller's reporter surfaces.
type Queue struct {
	ch      chan item
	handler Handler
	logg    *logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a queue pipeline with the given capacity.
func New(size int, handler Handler, logg *logger.Logger) (*Queue, error) {
	if handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue handler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if size <= 0 {
		size = defaultQueueSize
	}

	q := &Queue{
		ch:      make(chan item, size),
		handler: handler,
		logg:    logg,
		done:    make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q, nil
}

// Process enqueues the event for the drain goroutine.
func (q *Queue) Process(ctx context.Context, ev analytics.Event, enrichments []analytics.Enrichment) error {
	select {
	case <-q.done:
		return pkgerrors.New(pkgerrors.CodeDependency, "pipeline closed")
	default:
	}

	select {
	case q.ch <- item{ev: ev, enrichments: enrichments}:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, "pipeline queue full")
	}
}

// Close stops accepting events, drains what is already queued and waits for
// the drain goroutine to finish.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
	return nil
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case it := <-q.ch:
			q.handle(it)
		case <-q.done:
			for {
				select {
				case it := <-q.ch:
					q.handle(it)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) handle(it item) {
	ctx := q.logg.WithMessageID(context.Background(), it.ev.Common().MessageID)
	if err := q.handler.Handle(ctx, it.ev, it.enrichments); err != nil {
		q.logg.Error(ctx, "handling queued event", err)
	}
}

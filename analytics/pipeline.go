package analytics

import "context"

// Pipeline is the downstream delivery entry point. Process must not block the
// caller beyond enqueueing; batching, persistence, transport and retry are
// the implementation's concern. Call-scoped enrichments are forwarded for
// stages that re-run enrichment on flush.
type Pipeline interface {
	Process(ctx context.Context, ev Event, enrichments []Enrichment) error
	Close() error
}

package analytics

// Enrichment transforms an event before it leaves the client. It returns a
// (possibly different) event of the same kind, or nil to drop the event and
// halt the chain. Enrichments run synchronously on the dispatching goroutine
// and must not call back into the client.
type Enrichment func(c *Client, ev Event) Event

// applyEnrichments runs each chain in order: pipeline-wide enrichments first,
// then call-scoped ones. The first nil return wins and the event is dropped.
func applyEnrichments(c *Client, ev Event, chains ...[]Enrichment) (Event, bool) {
	for _, chain := range chains {
		for _, fn := range chain {
			if fn == nil {
				continue
			}
			next := fn(c, ev)
			if next == nil {
				return nil, false
			}
			ev = next
		}
	}
	return ev, true
}

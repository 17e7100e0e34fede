package serving

// Event represents a lifecycle event emitted by the core.
// Minimal and stable: name + servable identity and optional fields.
type Event struct {
	Name    string
	Model   string
	Version int64
	Fields  map[string]any
}

// EventPublisher receives events from the core. Implementations should be
// lightweight and non-blocking; Publish must not panic. The request path
// treats the publisher as fire-and-forget.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

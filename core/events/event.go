package events

// Event represents a structured state change emitted by the protocol engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is the concrete event emitted by the raffle engine: a type tag plus
// flat string attributes, mirroring what indexers and metric sinks consume.
type Payload struct {
	Type       string
	Attributes map[string]string
}

// EventType implements the Event interface.
func (p *Payload) EventType() string {
	if p == nil {
		return ""
	}
	return p.Type
}

// MultiEmitter fans a single emission out to several sinks in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

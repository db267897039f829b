package events

// Event represents a structured state change emitted by a protocol component.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (indexers, test
// recorders). Components hold an Emitter and never assume one is configured.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

package events

// Event represents a structured state change emitted by the staking engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC streams,
// audit journals, metrics collectors).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans a single event out to every configured sink in order.
type MultiEmitter struct {
	sinks []Emitter
}

// NewMultiEmitter builds a fan-out emitter from the supplied sinks. Nil sinks
// are skipped.
func NewMultiEmitter(sinks ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, sink := range sinks {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
	return m
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	for _, sink := range m.sinks {
		sink.Emit(evt)
	}
}

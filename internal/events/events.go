// Package events provides the typed publish/subscribe surface of the
// scanner. The kinds are a closed set; the wire names (including the
// Portuguese errorLeitura/processado) are the published contract and
// must not change.
package events

import (
	"sync"
)

// Kind identifies a scanner event.
type Kind int

const (
	KindStatus Kind = iota
	KindError
	KindReadError
	KindReset
	KindProcessed
)

var kindNames = [...]string{
	"status",
	"error",
	"errorLeitura",
	"reset",
	"processado",
}

func (k Kind) String() string {
	if k < KindStatus || k > KindProcessed {
		return "unknown"
	}
	return kindNames[k]
}

// Event is the single payload type delivered to subscribers. Which
// fields are set depends on Kind: Status for KindStatus, Err for
// KindError/KindReadError, Fields for KindProcessed.
type Event struct {
	Kind   Kind
	Status string
	Err    error
	Fields map[string]string
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

// Emitter dispatches events to per-kind subscribers.
// The zero value is ready to use.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers fn for events of the given kind.
func (e *Emitter) Subscribe(kind Kind, fn Handler) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = make(map[Kind][]Handler)
	}
	e.handlers[kind] = append(e.handlers[kind], fn)
}

// Emit delivers ev to all subscribers of ev.Kind, in subscription order.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	hs := e.handlers[ev.Kind]
	e.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

// EmitStatus is shorthand for emitting a human-readable status string.
func (e *Emitter) EmitStatus(status string) {
	e.Emit(Event{Kind: KindStatus, Status: status})
}

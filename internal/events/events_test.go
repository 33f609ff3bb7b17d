package events

import (
	"errors"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindStatus, "status"},
		{KindError, "error"},
		{KindReadError, "errorLeitura"},
		{KindReset, "reset"},
		{KindProcessed, "processado"},
		{Kind(99), "unknown"},
		{Kind(-1), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestEmitterDispatchesByKind(t *testing.T) {
	e := NewEmitter()

	var statuses []string
	var errs []error
	e.Subscribe(KindStatus, func(ev Event) { statuses = append(statuses, ev.Status) })
	e.Subscribe(KindError, func(ev Event) { errs = append(errs, ev.Err) })

	e.EmitStatus("starting")
	e.Emit(Event{Kind: KindError, Err: errors.New("boom")})
	e.EmitStatus("done")

	if len(statuses) != 2 || statuses[0] != "starting" || statuses[1] != "done" {
		t.Errorf("status handler got %v", statuses)
	}
	if len(errs) != 1 {
		t.Errorf("error handler got %d calls, want 1", len(errs))
	}
}

func TestEmitterMultipleSubscribersInOrder(t *testing.T) {
	e := NewEmitter()
	var order []int
	e.Subscribe(KindReset, func(Event) { order = append(order, 1) })
	e.Subscribe(KindReset, func(Event) { order = append(order, 2) })

	e.Emit(Event{Kind: KindReset})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("subscribers ran out of order: %v", order)
	}
}

func TestEmitterZeroValueUsable(t *testing.T) {
	var e Emitter
	called := false
	e.Subscribe(KindProcessed, func(Event) { called = true })
	e.Emit(Event{Kind: KindProcessed, Fields: map[string]string{"nome": "x"}})
	if !called {
		t.Error("zero-value emitter did not dispatch")
	}
}

func TestEmitterNoSubscribersIsNoop(t *testing.T) {
	e := NewEmitter()
	e.Emit(Event{Kind: KindStatus, Status: "ignored"})
}

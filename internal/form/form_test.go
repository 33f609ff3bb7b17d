package form

import (
	"errors"
	"testing"

	"github.com/dpazeto/scanform/internal/extract"
)

type failingTarget struct{ name string }

func (f failingTarget) Name() string          { return f.name }
func (f failingTarget) SetValue(string) error { return errors.New("read-only") }

func TestPopulateWritesByName(t *testing.T) {
	nome := NewValueTarget("nome")
	doc := NewValueTarget("documento")

	var changes []string
	f := New(nil, func(name, value string) { changes = append(changes, name+"="+value) })
	f.Register(nome)
	f.Register(doc)

	n := f.Populate(extract.Fields{
		"nome":      "Maria",
		"documento": "123",
		"ignorado":  "sem alvo",
	})

	if n != 2 {
		t.Errorf("Populate = %d writes, want 2", n)
	}
	if nome.Value() != "Maria" || doc.Value() != "123" {
		t.Errorf("targets = %q / %q", nome.Value(), doc.Value())
	}
	if len(changes) != 2 {
		t.Errorf("change notifications = %v", changes)
	}
}

func TestPopulateSharedNameWritesAll(t *testing.T) {
	a := NewValueTarget("nome")
	b := NewValueTarget("nome")
	f := New(nil, nil)
	f.Register(a)
	f.Register(b)

	if n := f.Populate(extract.Fields{"nome": "x"}); n != 2 {
		t.Errorf("Populate = %d, want 2", n)
	}
	if a.Value() != "x" || b.Value() != "x" {
		t.Error("shared-name targets not all written")
	}
}

func TestPopulateSkipsFailingTargets(t *testing.T) {
	f := New(nil, nil)
	f.Register(failingTarget{name: "nome"})
	ok := NewValueTarget("nome")
	f.Register(ok)

	if n := f.Populate(extract.Fields{"nome": "x"}); n != 1 {
		t.Errorf("Populate = %d, want 1 (failing target skipped)", n)
	}
	if ok.Value() != "x" {
		t.Error("healthy target not written")
	}
}

func TestPopulateEmptyFormIsNoop(t *testing.T) {
	f := New(nil, nil)
	if n := f.Populate(extract.Fields{"nome": "x"}); n != 0 {
		t.Errorf("Populate = %d, want 0", n)
	}
}

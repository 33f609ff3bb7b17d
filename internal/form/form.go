// Package form is the population target for extracted fields: a set of
// named value targets, written by field name, with a change
// notification per write.
package form

import (
	"log/slog"
	"sync"

	"github.com/dpazeto/scanform/internal/extract"
)

// Target receives one field's value. Implementations bridge to
// whatever the host environment considers an input: a UI binding, a
// downstream message, a buffered record.
type Target interface {
	Name() string
	SetValue(value string) error
}

// ChangeFunc is notified after each successful write, so the host can
// react to populated values.
type ChangeFunc func(name, value string)

// Form holds registered targets keyed by field name. Multiple targets
// may share a name; all of them are written.
type Form struct {
	logger   *slog.Logger
	onChange ChangeFunc

	mu      sync.RWMutex
	targets map[string][]Target
}

func New(logger *slog.Logger, onChange ChangeFunc) *Form {
	if logger == nil {
		logger = slog.Default()
	}
	return &Form{
		logger:   logger,
		onChange: onChange,
		targets:  make(map[string][]Target),
	}
}

// Register adds a target for its field name.
func (f *Form) Register(t Target) {
	if t == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[t.Name()] = append(f.targets[t.Name()], t)
}

// Populate writes each field into its registered targets and fires the
// change notification per write. Fields with no target are skipped.
// Returns how many writes landed.
func (f *Form) Populate(fields extract.Fields) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	written := 0
	for name, value := range fields {
		targets, ok := f.targets[name]
		if !ok {
			f.logger.Debug("form.field.unmapped", "field", name)
			continue
		}
		for _, t := range targets {
			if err := t.SetValue(value); err != nil {
				f.logger.Warn("form.field.write_failed", "field", name, "error", err)
				continue
			}
			written++
			if f.onChange != nil {
				f.onChange(name, value)
			}
		}
	}
	return written
}

// ValueTarget is a minimal in-memory Target.
type ValueTarget struct {
	FieldName string

	mu    sync.Mutex
	value string
}

func NewValueTarget(name string) *ValueTarget {
	return &ValueTarget{FieldName: name}
}

func (v *ValueTarget) Name() string { return v.FieldName }

func (v *ValueTarget) SetValue(value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	return nil
}

func (v *ValueTarget) Value() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

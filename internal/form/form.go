// Package form implements the edit lifecycle of a detail panel: values initialized from a row,
// dirty tracking against the original, discard, and the payload a save sends.
package form

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"

	"credentialing/api/internal/fields"
)

// State is the save/discard lifecycle of a form.
type State string

const (
	StateIdle    State = "idle"
	StateEditing State = "editing"
	StateSaving  State = "saving"
	StateSaved   State = "saved"
	StateError   State = "error"
)

var (
	ErrSaveInFlight = errors.New("a save is already in progress")
	ErrNotSaving    = errors.New("no save in progress")
	ErrUnknownField = errors.New("field is not configured")
)

// Row is a record as returned by the backend, keyed by column name.
type Row = map[string]any

type Form struct {
	cfg      *fields.Config
	id       string
	original Row
	values   map[string]any
	dirty    bool
	state    State
	lastErr  error
}

// New initializes a form for one row.
func New(cfg *fields.Config, row Row) *Form {
	f := &Form{cfg: cfg}
	f.Load(row)
	return f
}

// Load re-initializes the form when a different row is selected. Loading the row that is
// already open keeps pending edits.
func (f *Form) Load(row Row) {
	id := rowID(row)
	if f.original != nil && id != "" && id == f.id {
		return
	}
	f.id = id
	f.original = cloneRow(row)
	f.values = f.initialValues()
	f.dirty = false
	f.state = StateIdle
	f.lastErr = nil
}

func (f *Form) initialValues() map[string]any {
	values := make(map[string]any, len(f.cfg.Keys()))
	for _, field := range f.cfg.Fields() {
		values[field.Key] = fields.FormValue(field, f.original[field.Key])
	}
	return values
}

func (f *Form) ID() string { return f.id }

func (f *Form) State() State { return f.state }

func (f *Form) Err() error { return f.lastErr }

func (f *Form) HasUnsavedChanges() bool { return f.dirty }

// Value returns the current form value for key.
func (f *Form) Value(key string) any { return f.values[key] }

// Values returns a copy of the current form values.
func (f *Form) Values() map[string]any {
	out := make(map[string]any, len(f.values))
	for key, value := range f.values {
		out[key] = value
	}
	return out
}

// Original returns a copy of the row the form was loaded from (or last saved as).
func (f *Form) Original() Row { return cloneRow(f.original) }

// HandleChange records a new value and recomputes the dirty flag across every field.
func (f *Form) HandleChange(key string, value any) error {
	field, ok := f.cfg.Field(key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrUnknownField)
	}
	f.values[key] = fields.Normalize(field, value)
	f.dirty = f.computeDirty()
	if f.state == StateSaving {
		return nil
	}
	if f.dirty {
		f.state = StateEditing
	} else {
		f.state = StateIdle
	}
	return nil
}

func (f *Form) computeDirty() bool {
	for _, field := range f.cfg.Fields() {
		original := fields.FormValue(field, f.original[field.Key])
		if !cmp.Equal(f.values[field.Key], original) {
			return true
		}
	}
	return false
}

// HandleDiscardChanges restores every configured value from the original row.
func (f *Form) HandleDiscardChanges() {
	f.values = f.initialValues()
	f.dirty = false
	f.state = StateIdle
	f.lastErr = nil
}

// SavePayload is the update sent to the backend: configured keys only, multi-select values
// collapsed to id arrays and empty dates nulled.
func (f *Form) SavePayload() map[string]any {
	payload := make(map[string]any, len(f.values))
	for _, field := range f.cfg.Fields() {
		value, ok := f.values[field.Key]
		if !ok {
			continue
		}
		payload[field.Key] = fields.StoredValue(field, value)
	}
	return payload
}

// Merged is the original row with the save payload applied, the shape written into the
// query cache before the backend answers.
func (f *Form) Merged() Row {
	merged := cloneRow(f.original)
	for key, value := range f.SavePayload() {
		merged[key] = value
	}
	return merged
}

// BeginSave moves the form into the saving state. Only one save may be outstanding.
func (f *Form) BeginSave() error {
	if f.state == StateSaving {
		return ErrSaveInFlight
	}
	f.state = StateSaving
	f.lastErr = nil
	return nil
}

// CompleteSave adopts the persisted row as the new original.
func (f *Form) CompleteSave(saved Row) error {
	if f.state != StateSaving {
		return ErrNotSaving
	}
	if saved == nil {
		saved = f.Merged()
	}
	f.original = cloneRow(saved)
	f.values = f.initialValues()
	f.dirty = false
	f.state = StateSaved
	return nil
}

// FailSave keeps the edited values and the dirty flag so the user can retry.
func (f *Form) FailSave(err error) error {
	if f.state != StateSaving {
		return ErrNotSaving
	}
	f.state = StateError
	f.lastErr = err
	f.dirty = f.computeDirty()
	return nil
}

func rowID(row Row) string {
	if row == nil {
		return ""
	}
	switch id := row["id"].(type) {
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for key, value := range row {
		out[key] = value
	}
	return out
}

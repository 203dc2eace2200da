package annotate

import (
	"errors"
	"fmt"
)

// Mode is the overlay state for one user.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeArmed    Mode = "armed"
	ModeFormOpen Mode = "form_open"
	ModeEditing  Mode = "editing"
)

type Event string

const (
	EventToggle    Event = "toggle"
	EventClick     Event = "click"
	EventSubmit    Event = "submit"
	EventCancel    Event = "cancel"
	EventBeginEdit Event = "begin_edit"
	EventEndEdit   Event = "end_edit"
)

var ErrInvalidTransition = errors.New("invalid overlay transition")

// Next applies an event. Toggling from any mode other than Off turns the overlay off.
// Ending an edit leaves the overlay off; Sessions resumes the mode the edit began from.
func (m Mode) Next(e Event) (Mode, error) {
	switch e {
	case EventToggle:
		if m == ModeOff {
			return ModeArmed, nil
		}
		return ModeOff, nil
	case EventClick:
		if m == ModeArmed {
			return ModeFormOpen, nil
		}
	case EventSubmit, EventCancel:
		if m == ModeFormOpen {
			return ModeArmed, nil
		}
	case EventBeginEdit:
		if m == ModeOff || m == ModeArmed {
			return ModeEditing, nil
		}
	case EventEndEdit:
		if m == ModeEditing {
			return ModeOff, nil
		}
	}
	return m, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, e, m)
}

// PageInteractive reports whether the underlying page accepts input.
func (m Mode) PageInteractive() bool {
	return m == ModeOff || m == ""
}

// CapturesClicks reports whether a click on the page opens the annotation form.
func (m Mode) CapturesClicks() bool {
	return m == ModeArmed
}

// HighlightsHover reports whether hovered elements get an outline.
func (m Mode) HighlightsHover() bool {
	return m == ModeArmed
}

// FreezesOutline reports whether the clicked element keeps its outline.
func (m Mode) FreezesOutline() bool {
	return m == ModeFormOpen
}

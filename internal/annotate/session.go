package annotate

import (
	"sync"
)

// Capture is the element and click point frozen while the annotation form is open.
type Capture struct {
	Selector     string    `json:"selector"`
	ElementLabel string    `json:"element_label"`
	Point        Point     `json:"point"`
	Placement    Placement `json:"placement"`
}

// Input is one overlay interaction reported by the client.
type Input struct {
	Event    Event    `json:"event"`
	Element  *Element `json:"element,omitempty"`
	Rect     Rect     `json:"rect"`
	Point    Point    `json:"point"`
	Viewport Viewport `json:"viewport"`
}

type State struct {
	Mode             Mode     `json:"mode"`
	PageInteractive  bool     `json:"page_interactive"`
	CapturesClicks   bool     `json:"captures_clicks"`
	DisabledSelector string   `json:"disabled_selector,omitempty"`
	Capture          *Capture `json:"capture,omitempty"`
	// Ignored is set when a click landed inside the annotation UI.
	Ignored bool `json:"ignored,omitempty"`
}

// Sessions tracks overlay state per user.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mode    Mode
	capture *Capture
	// resume is the mode an edit returns to; editing never arms click capture.
	resume Mode
}

func NewSessions() *Sessions {
	return &Sessions{sessions: map[string]*session{}}
}

func (s *Sessions) get(user string) *session {
	sess, ok := s.sessions[user]
	if !ok {
		sess = &session{mode: ModeOff}
		s.sessions[user] = sess
	}
	return sess
}

// State returns the user's current overlay state without changing it.
func (s *Sessions) State(user string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).state(false)
}

// Apply drives the user's overlay with one input.
func (s *Sessions) Apply(user string, in Input) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(user)

	if in.Event == EventClick && in.Element != nil && in.Element.InOverlay {
		return sess.state(true), nil
	}

	next, err := sess.mode.Next(in.Event)
	if err != nil {
		return sess.state(false), err
	}

	switch in.Event {
	case EventBeginEdit:
		sess.resume = sess.mode
	case EventEndEdit:
		if sess.resume != "" {
			next = sess.resume
		}
		sess.resume = ""
	}

	switch {
	case in.Event == EventClick:
		el := Element{}
		if in.Element != nil {
			el = *in.Element
		}
		sess.capture = &Capture{
			Selector:     Selector(el),
			ElementLabel: Label(el),
			Point:        in.Point,
			Placement:    ChoosePlacement(in.Rect, in.Viewport),
		}
	case next != ModeFormOpen:
		sess.capture = nil
	}
	sess.mode = next
	if next == ModeOff {
		delete(s.sessions, user)
	}
	return sess.state(false), nil
}

func (sess *session) state(ignored bool) State {
	st := State{
		Mode:            sess.mode,
		PageInteractive: sess.mode.PageInteractive(),
		CapturesClicks:  sess.mode.CapturesClicks(),
		Capture:         sess.capture,
		Ignored:         ignored,
	}
	if !st.PageInteractive {
		st.DisabledSelector = DisabledSelector()
	}
	return st
}

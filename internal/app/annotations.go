package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"credentialing/api/internal/annotate"
)

// DefaultAnnotationBox is the rendered annotation card size used when the client does not
// report one.
var DefaultAnnotationBox = annotate.Size{Width: 280, Height: 140}

type AnnotationView struct {
	annotate.Annotation
	// Display is where the card sits for the requesting viewport.
	Display *annotate.Point `json:"display,omitempty"`
}

type AnnotationQuery struct {
	Page   string
	Branch string
	// Viewport and Box are optional; Display is only computed when the viewport is known.
	Viewport *annotate.Viewport
	Box      annotate.Size
}

// CurrentBranch is the branch annotations are scoped to, empty outside a repository.
func (s *Service) CurrentBranch() string {
	if s.git == nil {
		return ""
	}
	return s.git.Branch()
}

func (s *Service) ListAnnotations(ctx context.Context, q AnnotationQuery) ([]AnnotationView, error) {
	page := strings.TrimSpace(q.Page)
	if page == "" {
		return nil, invalid("page is required", nil)
	}
	branch := strings.TrimSpace(q.Branch)
	if branch == "" {
		branch = s.CurrentBranch()
	}
	rows, err := s.store.ListAnnotations(ctx, page, branch)
	if err != nil {
		return nil, err
	}

	box := q.Box
	if box.Width <= 0 || box.Height <= 0 {
		box = DefaultAnnotationBox
	}
	visible := annotate.Filter(rows, page, branch)
	out := make([]AnnotationView, 0, len(visible))
	for _, a := range visible {
		view := AnnotationView{Annotation: a}
		if q.Viewport != nil {
			at := annotate.DisplayPosition(a.Point(), a.Placement, box, *q.Viewport)
			view.Display = &at
		}
		out = append(out, view)
	}
	return out, nil
}

type CreateAnnotationInput struct {
	PageURL      string             `json:"page_url"`
	Body         string             `json:"body"`
	Selector     string             `json:"selector"`
	ElementLabel string             `json:"element_label"`
	Point        annotate.Point     `json:"point"`
	Placement    annotate.Placement `json:"placement"`
	Rect         *annotate.Rect     `json:"rect,omitempty"`
	Viewport     *annotate.Viewport `json:"viewport,omitempty"`
}

// CreateAnnotation stores a note against the element the user clicked. When the user's overlay
// has a captured click, the capture supplies the selector, point and placement and the overlay
// returns to armed.
func (s *Service) CreateAnnotation(ctx context.Context, session Session, in CreateAnnotationInput) (annotate.Annotation, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return annotate.Annotation{}, invalid("annotation body is required", nil)
	}
	if strings.TrimSpace(in.PageURL) == "" {
		return annotate.Annotation{}, invalid("page_url is required", nil)
	}

	overlay := s.overlay.State(session.UserID)
	fromOverlay := overlay.Mode == annotate.ModeFormOpen && overlay.Capture != nil
	if fromOverlay {
		in.Selector = overlay.Capture.Selector
		in.ElementLabel = overlay.Capture.ElementLabel
		in.Point = overlay.Capture.Point
		in.Placement = overlay.Capture.Placement
	}
	if strings.TrimSpace(in.Selector) == "" {
		return annotate.Annotation{}, invalid("selector is required", nil)
	}
	if in.Placement == "" && in.Rect != nil && in.Viewport != nil {
		in.Placement = annotate.ChoosePlacement(*in.Rect, *in.Viewport)
	}
	if !in.Placement.Valid() {
		return annotate.Annotation{}, invalid("placement must be top, bottom, left or right", nil)
	}

	a := annotate.Annotation{
		PageURL:      in.PageURL,
		Selector:     in.Selector,
		ElementLabel: in.ElementLabel,
		Body:         body,
		Author:       session.UserName,
		PositionX:    in.Point.X,
		PositionY:    in.Point.Y,
		Placement:    in.Placement,
	}
	if branch := s.CurrentBranch(); branch != "" {
		a.GitBranch = &branch
	}
	saved, err := s.store.InsertAnnotation(ctx, a)
	if err != nil {
		return annotate.Annotation{}, err
	}
	if fromOverlay {
		_, _ = s.overlay.Apply(session.UserID, annotate.Input{Event: annotate.EventSubmit})
	}
	return saved, nil
}

type UpdateAnnotationInput struct {
	Body     *string `json:"body"`
	Resolved *bool   `json:"resolved"`
}

func (s *Service) UpdateAnnotation(ctx context.Context, id string, in UpdateAnnotationInput) (annotate.Annotation, error) {
	current, err := s.store.GetAnnotation(ctx, id)
	if err != nil {
		return annotate.Annotation{}, err
	}
	body := current.Body
	if in.Body != nil {
		body = strings.TrimSpace(*in.Body)
		if body == "" {
			return annotate.Annotation{}, invalid("annotation body is required", nil)
		}
	}
	resolved := current.Resolved
	if in.Resolved != nil {
		resolved = *in.Resolved
	}
	return s.store.UpdateAnnotation(ctx, id, body, resolved)
}

func (s *Service) DeleteAnnotation(ctx context.Context, id string) error {
	return s.store.DeleteAnnotation(ctx, id)
}

func (s *Service) OverlayState(userID string) annotate.State {
	return s.overlay.State(userID)
}

// Overlay drives the user's annotation overlay with one client interaction.
func (s *Service) Overlay(userID string, in annotate.Input) (annotate.State, error) {
	state, err := s.overlay.Apply(userID, in)
	if err != nil {
		if errors.Is(err, annotate.ErrInvalidTransition) {
			return state, domainError(http.StatusConflict, "INVALID_TRANSITION", err.Error(), map[string]any{"mode": state.Mode})
		}
		return state, err
	}
	return state, nil
}

package app

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing/api/internal/annotate"
)

func strPtr(s string) *string { return &s }

func TestCreateAnnotationFromOverlayCapture(t *testing.T) {
	ctx := context.Background()
	var inserted annotate.Annotation
	fs := &fakeStore{
		insertAnnotationFn: func(_ context.Context, a annotate.Annotation) (annotate.Annotation, error) {
			inserted = a
			a.ID = "ann-1"
			return a, nil
		},
	}
	svc := newTestService(t, fs)
	session := Session{UserID: "user-1", UserName: "Avery"}

	_, err := svc.Overlay(session.UserID, annotate.Input{Event: annotate.EventToggle})
	require.NoError(t, err)
	state, err := svc.Overlay(session.UserID, annotate.Input{
		Event:    annotate.EventClick,
		Element:  &annotate.Element{Tag: "BUTTON", ID: "save-provider", Text: "Save"},
		Rect:     annotate.Rect{Left: 100, Top: 100, Width: 80, Height: 30},
		Point:    annotate.Point{X: 120, Y: 110},
		Viewport: annotate.Viewport{Width: 1280, Height: 800},
	})
	require.NoError(t, err)
	require.Equal(t, annotate.ModeFormOpen, state.Mode)

	saved, err := svc.CreateAnnotation(ctx, session, CreateAnnotationInput{
		PageURL:  "/providers",
		Body:     "Button label should say Save provider",
		Selector: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann-1", saved.ID)
	assert.Equal(t, "#save-provider", inserted.Selector)
	assert.Equal(t, "Save", inserted.ElementLabel)
	assert.Equal(t, annotate.PlacementRight, inserted.Placement)
	assert.Equal(t, 120.0, inserted.PositionX)
	assert.Equal(t, "Avery", inserted.Author)
	require.NotNil(t, inserted.GitBranch)
	assert.Equal(t, "main", *inserted.GitBranch)

	assert.Equal(t, annotate.ModeArmed, svc.OverlayState(session.UserID).Mode)
}

func TestCreateAnnotationValidation(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	session := Session{UserID: "user-1"}

	_, err := svc.CreateAnnotation(context.Background(), session, CreateAnnotationInput{PageURL: "/providers"})
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")

	_, err = svc.CreateAnnotation(context.Background(), session, CreateAnnotationInput{PageURL: "/providers", Body: "hi"})
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")

	_, err = svc.CreateAnnotation(context.Background(), session, CreateAnnotationInput{
		PageURL:   "/providers",
		Body:      "hi",
		Selector:  "#grid",
		Placement: "diagonal",
	})
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")

	saved, err := svc.CreateAnnotation(context.Background(), session, CreateAnnotationInput{
		PageURL:  "/providers",
		Body:     "hi",
		Selector: "#grid",
		Rect:     &annotate.Rect{Left: 1200, Top: 700, Width: 60, Height: 60},
		Viewport: &annotate.Viewport{Width: 1280, Height: 800},
	})
	require.NoError(t, err)
	assert.Equal(t, annotate.PlacementLeft, saved.Placement)
}

func TestListAnnotationsScopesByBranchAndPositions(t *testing.T) {
	var askedBranch string
	fs := &fakeStore{
		listAnnotationsFn: func(_ context.Context, page, branch string) ([]annotate.Annotation, error) {
			askedBranch = branch
			return []annotate.Annotation{
				{ID: "a1", PageURL: page, GitBranch: strPtr("main"), PositionX: 1270, PositionY: 400, Placement: annotate.PlacementRight},
				{ID: "a2", PageURL: page, GitBranch: strPtr("feature"), PositionX: 10, PositionY: 10, Placement: annotate.PlacementTop},
				{ID: "a3", PageURL: page, PositionX: 640, PositionY: 400, Placement: annotate.PlacementBottom},
			}, nil
		},
	}
	svc := newTestService(t, fs)

	views, err := svc.ListAnnotations(context.Background(), AnnotationQuery{
		Page:     "/providers",
		Viewport: &annotate.Viewport{Width: 1280, Height: 800},
	})
	require.NoError(t, err)
	assert.Equal(t, "main", askedBranch)
	require.Len(t, views, 2)
	assert.Equal(t, "a1", views[0].ID)
	require.NotNil(t, views[0].Display)
	// Pushed back inside the right edge.
	assert.Equal(t, 1280-DefaultAnnotationBox.Width-annotate.Margin, views[0].Display.X)
	assert.Equal(t, 640-DefaultAnnotationBox.Width/2, views[1].Display.X)
	assert.Equal(t, 400+annotate.Offset, views[1].Display.Y)

	_, err = svc.ListAnnotations(context.Background(), AnnotationQuery{})
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestUpdateAnnotationMergesFields(t *testing.T) {
	fs := &fakeStore{
		getAnnotationFn: func(context.Context, string) (annotate.Annotation, error) {
			return annotate.Annotation{ID: "a1", Body: "original"}, nil
		},
	}
	svc := newTestService(t, fs)
	resolved := true

	updated, err := svc.UpdateAnnotation(context.Background(), "a1", UpdateAnnotationInput{Resolved: &resolved})
	require.NoError(t, err)
	assert.Equal(t, "original", updated.Body)
	assert.True(t, updated.Resolved)

	blank := " "
	_, err = svc.UpdateAnnotation(context.Background(), "a1", UpdateAnnotationInput{Body: &blank})
	requireDomainCode(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestOverlayRejectsInvalidTransition(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	_, err := svc.Overlay("user-1", annotate.Input{Event: annotate.EventSubmit})
	requireDomainCode(t, err, http.StatusConflict, "INVALID_TRANSITION")
}

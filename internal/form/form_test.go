package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing/api/internal/fields"
)

func licenseConfig() *fields.Config {
	states := []fields.Option{{ID: "CA", Label: "California"}, {ID: "NY", Label: "New York"}}
	tags := []fields.Option{{ID: "Priority", Label: "Priority"}, {ID: "Locum", Label: "Locum"}}
	return &fields.Config{
		Entity:     "state_licenses",
		Table:      "state_licenses",
		QueryKey:   "stateLicenses",
		Optimistic: true,
		Sections: []fields.Section{
			{Title: "License", Fields: []fields.Field{
				{Key: "state", Label: "State", Options: states},
				{Key: "license_number", Label: "License Number"},
			}},
			{Title: "Dates", Fields: []fields.Field{
				{Key: "expiration_date", Label: "Expiration", Type: fields.TypeDate},
			}},
			{Title: "Tags", Collapsed: true, Fields: []fields.Field{
				{Key: "tags", Label: "Tags", Options: tags, Multi: true},
			}},
		},
	}
}

func licenseRow() Row {
	return Row{
		"id":              "lic-1",
		"provider_id":     "prov-1",
		"state":           "CA",
		"license_number":  "A12345",
		"expiration_date": "2026-01-31",
		"tags":            []any{"Priority"},
	}
}

func TestNewDeserializesMultiSelect(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	assert.Equal(t, []fields.Option{{ID: "Priority", Label: "Priority"}}, f.Value("tags"))
	assert.Equal(t, "CA", f.Value("state"))
	assert.False(t, f.HasUnsavedChanges())
	assert.Equal(t, StateIdle, f.State())
}

func TestHandleChangeTracksDirtyByDeepEquality(t *testing.T) {
	f := New(licenseConfig(), licenseRow())

	require.NoError(t, f.HandleChange("license_number", "B99999"))
	assert.True(t, f.HasUnsavedChanges())
	assert.Equal(t, StateEditing, f.State())

	// back to the original value: clean again
	require.NoError(t, f.HandleChange("license_number", "A12345"))
	assert.False(t, f.HasUnsavedChanges())
	assert.Equal(t, StateIdle, f.State())

	// a freshly built but equal multi-select value is not a change
	require.NoError(t, f.HandleChange("tags", []any{map[string]any{"id": "Priority", "label": "Priority"}}))
	assert.False(t, f.HasUnsavedChanges())

	require.NoError(t, f.HandleChange("tags", []any{"Priority", "Locum"}))
	assert.True(t, f.HasUnsavedChanges())
}

func TestHandleChangeRejectsUnknownField(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	err := f.HandleChange("provider_id", "prov-2")
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.False(t, f.HasUnsavedChanges())
}

func TestHandleDiscardChangesRestoresOriginal(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	original := f.Values()

	require.NoError(t, f.HandleChange("state", "NY"))
	require.NoError(t, f.HandleChange("tags", []string{}))
	require.True(t, f.HasUnsavedChanges())

	f.HandleDiscardChanges()
	assert.Equal(t, original, f.Values())
	assert.False(t, f.HasUnsavedChanges())
	assert.Equal(t, StateIdle, f.State())
}

func TestSavePayload(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	require.NoError(t, f.HandleChange("expiration_date", ""))
	require.NoError(t, f.HandleChange("tags", []any{"Priority", "Locum"}))

	payload := f.SavePayload()
	assert.Equal(t, map[string]any{
		"state":           "CA",
		"license_number":  "A12345",
		"expiration_date": nil,
		"tags":            []string{"Priority", "Locum"},
	}, payload)
	_, leaked := payload["provider_id"]
	assert.False(t, leaked, "unconfigured keys must not be sent")

	merged := f.Merged()
	assert.Equal(t, "prov-1", merged["provider_id"])
	assert.Equal(t, []string{"Priority", "Locum"}, merged["tags"])
}

func TestSaveLifecycle(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	require.NoError(t, f.HandleChange("license_number", "B1"))

	require.NoError(t, f.BeginSave())
	assert.Equal(t, StateSaving, f.State())
	assert.ErrorIs(t, f.BeginSave(), ErrSaveInFlight)

	saved := f.Merged()
	require.NoError(t, f.CompleteSave(saved))
	assert.Equal(t, StateSaved, f.State())
	assert.False(t, f.HasUnsavedChanges())
	assert.Equal(t, "B1", f.Original()["license_number"])
}

func TestFailedSaveKeepsEdits(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	require.NoError(t, f.HandleChange("license_number", "B1"))
	require.NoError(t, f.BeginSave())

	boom := errors.New("duplicate key value violates unique constraint")
	require.NoError(t, f.FailSave(boom))
	assert.Equal(t, StateError, f.State())
	assert.Equal(t, boom, f.Err())
	assert.True(t, f.HasUnsavedChanges())
	assert.Equal(t, "B1", f.Value("license_number"))

	// editing again leaves the error state
	require.NoError(t, f.HandleChange("license_number", "B2"))
	assert.Equal(t, StateEditing, f.State())
}

func TestCompleteWithoutBegin(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	assert.ErrorIs(t, f.CompleteSave(nil), ErrNotSaving)
	assert.ErrorIs(t, f.FailSave(errors.New("x")), ErrNotSaving)
}

func TestLoadSwitchesRowsOnlyWhenIDChanges(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	require.NoError(t, f.HandleChange("license_number", "B1"))

	f.Load(licenseRow())
	assert.Equal(t, "B1", f.Value("license_number"), "same row keeps pending edits")

	other := licenseRow()
	other["id"] = "lic-2"
	other["license_number"] = "Z9"
	f.Load(other)
	assert.Equal(t, "lic-2", f.ID())
	assert.Equal(t, "Z9", f.Value("license_number"))
	assert.False(t, f.HasUnsavedChanges())
}

func TestLayout(t *testing.T) {
	f := New(licenseConfig(), licenseRow())
	layout := f.Layout()
	require.Len(t, layout, 3)
	assert.Equal(t, "License", layout[0].Title)
	assert.Equal(t, fields.KindSingleSelect, layout[0].Fields[0].Kind)
	assert.True(t, layout[2].Collapsed)
	assert.Equal(t, fields.KindMultiSelect, layout[2].Fields[0].Kind)
}

func TestClampPanelWidth(t *testing.T) {
	assert.Equal(t, MinPanelWidth, ClampPanelWidth(100, 1600))
	assert.Equal(t, 600, ClampPanelWidth(600, 1600))
	assert.Equal(t, 800, ClampPanelWidth(1200, 1600))
	assert.Equal(t, MinPanelWidth, ClampPanelWidth(900, 600))
}

package form

import "credentialing/api/internal/fields"

// MinPanelWidth is the narrowest the side panel may be dragged to, in CSS pixels.
const MinPanelWidth = 400

// ClampPanelWidth bounds a dragged side panel width to [MinPanelWidth, half the viewport].
// A viewport too narrow for the minimum gets the minimum.
func ClampPanelWidth(requested, viewport int) int {
	maxWidth := viewport / 2
	if maxWidth < MinPanelWidth {
		return MinPanelWidth
	}
	if requested < MinPanelWidth {
		return MinPanelWidth
	}
	if requested > maxWidth {
		return maxWidth
	}
	return requested
}

// Tabs shown in the side panel.
var Tabs = []string{"Details", "Notes", "Documents", "Team"}

// PanelField is a field ready to render: its resolved control and current form value.
type PanelField struct {
	fields.Field
	Kind  fields.Kind `json:"kind"`
	Value any         `json:"value"`
}

type PanelSection struct {
	Title     string       `json:"title"`
	Collapsed bool         `json:"collapsed"`
	Fields    []PanelField `json:"fields"`
}

// Layout groups the form's current values into the configured collapsible sections.
func (f *Form) Layout() []PanelSection {
	sections := make([]PanelSection, 0, len(f.cfg.Sections))
	for _, section := range f.cfg.Sections {
		out := PanelSection{Title: section.Title, Collapsed: section.Collapsed}
		for _, field := range section.Fields {
			out.Fields = append(out.Fields, PanelField{
				Field: field,
				Kind:  field.Kind(),
				Value: f.values[field.Key],
			})
		}
		sections = append(sections, out)
	}
	return sections
}

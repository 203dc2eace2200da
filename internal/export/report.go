package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"credentialing/api/internal/fields"
)

// Source is the aggregate a report is built from: the provider row and its rows per table.
type Source struct {
	Provider map[string]any
	Tables   map[string][]map[string]any
}

type sectionSpec struct {
	table string
	title string
	// columns used when the table has no panel configuration
	columns []string
}

var reportSections = []sectionSpec{
	{table: "birth_info", title: "Birth Information"},
	{table: "addresses", title: "Addresses"},
	{table: "state_licenses", title: "State Licenses"},
	{table: "dea_licenses", title: "DEA Licenses"},
	{table: "state_controlled_substance_licenses", title: "State Controlled Substance Licenses"},
	{table: "facility_affiliations", title: "Facility Affiliations"},
	{table: "notes", title: "Notes", columns: []string{"author", "body", "created_at"}},
	{table: "documents", title: "Documents", columns: []string{"name", "content_type", "size", "uploaded_by"}},
}

// BuildReport lays the aggregate out with the labels and option names from the panel
// configuration, so the printed report reads the same as the detail panels.
func BuildReport(reg *fields.Registry, src Source, generatedAt time.Time) Report {
	name := strings.TrimSpace(fmt.Sprintf("%s %s", text(src.Provider["first_name"]), text(src.Provider["last_name"])))
	if name == "" {
		name = "Provider"
	}
	report := Report{
		Title:       name + " Credentialing Report",
		GeneratedAt: generatedAt,
	}

	var headline []string
	if cfg, ok := reg.Get("providers"); ok {
		for _, field := range cfg.Fields() {
			value := display(field, src.Provider[field.Key])
			report.Summary = append(report.Summary, Field{Label: field.Label, Value: value})
			if (field.Key == "title" || field.Key == "specialty") && value != "" {
				headline = append(headline, value)
			}
		}
	}
	report.Subtitle = strings.Join(headline, ", ")

	for _, spec := range reportSections {
		report.Sections = append(report.Sections, buildSection(reg, spec, src.Tables[spec.table]))
	}
	return report
}

func buildSection(reg *fields.Registry, spec sectionSpec, rows []map[string]any) Section {
	var cols []fields.Field
	if cfg, ok := reg.Get(spec.table); ok {
		for _, field := range cfg.Fields() {
			if field.Key == "provider_id" {
				continue
			}
			cols = append(cols, field)
		}
	} else {
		for _, key := range spec.columns {
			cols = append(cols, fields.Field{Key: key, Label: humanize(key)})
		}
	}

	section := Section{Title: spec.title}
	for _, col := range cols {
		section.Columns = append(section.Columns, col.Label)
	}

	sorted := append([]map[string]any(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return text(sorted[i]["created_at"]) < text(sorted[j]["created_at"])
	})
	for _, row := range sorted {
		cells := make([]string, 0, len(cols))
		for _, col := range cols {
			cells = append(cells, display(col, row[col.Key]))
		}
		section.Rows = append(section.Rows, cells)
	}
	return section
}

func display(field fields.Field, raw any) string {
	switch value := fields.FormValue(field, raw).(type) {
	case []fields.Option:
		labels := make([]string, 0, len(value))
		for _, option := range value {
			labels = append(labels, option.Label)
		}
		return strings.Join(labels, ", ")
	case string:
		if field.Kind() == fields.KindSingleSelect {
			if option, ok := field.Lookup(value); ok {
				return option.Label
			}
		}
		return value
	default:
		return fmt.Sprint(value)
	}
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func humanize(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

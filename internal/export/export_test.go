package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"credentialing/api/internal/fields"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"Jane Doe v1.2", "Jane-Doe-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "provider-report"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestBrowserMissing(t *testing.T) {
	p := chromePrinter{browserPath: filepath.Join(t.TempDir(), "no-such-chrome")}
	if _, err := p.print(context.Background(), "<p>x</p>", "x"); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("print() error = %v, want ErrPDFDependencyMissing", err)
	}

	t.Setenv("PATH", t.TempDir())
	if _, err := (chromePrinter{}).browser(); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("browser() error = %v, want ErrPDFDependencyMissing", err)
	}
}

func TestBrowserPrefersConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := chromePrinter{browserPath: path}.browser()
	if err != nil || got != path {
		t.Fatalf("browser() = %q, %v", got, err)
	}
}

func TestPaperDefaultsToLetter(t *testing.T) {
	params := Paper{}.printParams()
	if params.PaperWidth != 8.5 || params.PaperHeight != 11 || params.MarginTop != 0.5 {
		t.Fatalf("unexpected params %+v", params)
	}
	if !(Paper{Width: 8.5, Height: 11, Landscape: true}).printParams().Landscape {
		t.Fatal("landscape flag dropped")
	}
}

func TestRenderReportHTML(t *testing.T) {
	report := Report{
		Title:    "Jane Doe Credentialing Report",
		Subtitle: "MD, Cardiology",
		Summary:  []Field{{Label: "NPI", Value: "1234567890"}, {Label: "Phone", Value: ""}},
		Sections: []Section{
			{Title: "State Licenses", Columns: []string{"State", "Status"}, Rows: [][]string{{"California", "Active"}}},
			{Title: "DEA Licenses", Columns: []string{"DEA Number"}},
			{Title: "Notes", Columns: []string{"Body"}, Rows: [][]string{{"<script>alert(1)</script>"}}},
		},
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	html, err := RenderReportHTML(report)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	for _, want := range []string{"Jane Doe Credentialing Report", "MD, Cardiology", "1234567890", "California", "None on file.", "Mar 1, 2024"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("row values must be escaped")
	}
}

func TestBuildReportUsesPanelLabels(t *testing.T) {
	reg, err := fields.Default()
	if err != nil {
		t.Fatalf("load fields: %v", err)
	}

	src := Source{
		Provider: map[string]any{
			"id": "p1", "first_name": "Jane", "last_name": "Doe", "title": "MD",
			"languages": []any{"en", "zz"},
		},
		Tables: map[string][]map[string]any{
			"state_licenses": {
				{"id": "b", "state": "TX", "status": "Expired", "created_at": "2024-02-01T00:00:00Z"},
				{"id": "a", "state": "CA", "status": "Active", "created_at": "2024-01-01T00:00:00Z"},
			},
			"notes": {{"id": "n1", "author": "ops", "body": "Called the board"}},
		},
	}

	report := BuildReport(reg, src, time.Now())
	if report.Title != "Jane Doe Credentialing Report" {
		t.Fatalf("Title = %q", report.Title)
	}
	if report.Subtitle != "MD" {
		t.Errorf("Subtitle = %q, want MD", report.Subtitle)
	}

	var languages string
	for _, f := range report.Summary {
		if f.Label == "Languages" {
			languages = f.Value
		}
	}
	if !strings.HasSuffix(languages, ", zz") {
		t.Errorf("unknown language id should keep the id as label, got %q", languages)
	}

	sections := map[string]Section{}
	for _, s := range report.Sections {
		sections[s.Title] = s
	}
	if len(report.Sections) != len(reportSections) {
		t.Fatalf("got %d sections, want %d", len(report.Sections), len(reportSections))
	}

	licenses := sections["State Licenses"]
	if len(licenses.Rows) != 2 {
		t.Fatalf("state license rows = %d, want 2", len(licenses.Rows))
	}
	if licenses.Columns[0] != "State" || licenses.Rows[0][0] != "California" || licenses.Rows[1][0] != "Texas" {
		t.Errorf("rows should be ordered by created_at with option labels, got %v", licenses.Rows)
	}

	notes := sections["Notes"]
	if strings.Join(notes.Columns, "|") != "Author|Body|Created At" {
		t.Errorf("notes columns = %v", notes.Columns)
	}
	if notes.Rows[0][1] != "Called the board" {
		t.Errorf("notes row = %v", notes.Rows[0])
	}
	if len(sections["DEA Licenses"].Rows) != 0 {
		t.Error("DEA section should be empty")
	}
}

func TestExportFormats(t *testing.T) {
	var printed string
	svc := &Service{printPDF: func(_ context.Context, html, title string) (*Result, error) {
		printed = html
		return &Result{Data: []byte("%PDF"), Filename: sanitizeFilename(title) + ".pdf", MimeType: "application/pdf"}, nil
	}}
	report := Report{Title: "Jane Doe Credentialing Report"}

	res, err := svc.Export(context.Background(), report, FormatPDF)
	if err != nil {
		t.Fatalf("Export(pdf) error = %v", err)
	}
	if res.Filename != "Jane-Doe-Credentialing-Report.pdf" || !strings.Contains(printed, "<h1>Jane Doe Credentialing Report</h1>") {
		t.Errorf("unexpected pdf result %q", res.Filename)
	}

	res, err = svc.Export(context.Background(), report, FormatHTML)
	if err != nil {
		t.Fatalf("Export(html) error = %v", err)
	}
	if res.MimeType != "text/html; charset=utf-8" || !strings.HasSuffix(res.Filename, ".html") {
		t.Errorf("unexpected html result %+v", res)
	}

	if _, err := svc.Export(context.Background(), report, Format("docx")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Export(docx) error = %v, want ErrUnsupportedFormat", err)
	}
}

// Package export renders a provider's credentialing record to HTML and prints it to PDF.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Field is one labelled value in the report summary.
type Field struct {
	Label string
	Value string
}

// Section is one provider grid rendered as a table.
type Section struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Report is the render-ready provider report.
type Report struct {
	Title       string
	Subtitle    string
	Summary     []Field
	Sections    []Section
	GeneratedAt time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat is returned for formats other than pdf and html.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)

package export

import (
	"context"
	"fmt"
)

type pdfRenderer func(ctx context.Context, html, title string) (*Result, error)

// Service renders provider reports
type Service struct {
	printPDF pdfRenderer
}

type Option func(*chromePrinter)

// WithBrowser pins the Chrome or Chromium executable instead of searching PATH.
func WithBrowser(path string) Option {
	return func(p *chromePrinter) { p.browserPath = path }
}

func WithPaper(paper Paper) Option {
	return func(p *chromePrinter) { p.paper = paper }
}

// NewService creates a report service that prints PDFs with headless Chrome.
func NewService(opts ...Option) *Service {
	printer := chromePrinter{paper: Letter, timeout: pdfTimeout}
	for _, opt := range opts {
		opt(&printer)
	}
	return &Service{printPDF: printer.print}
}

// Export renders the report in the requested format.
func (s *Service) Export(ctx context.Context, report Report, format Format) (*Result, error) {
	html, err := RenderReportHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(report.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF, "":
		return s.printPDF(ctx, html, report.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

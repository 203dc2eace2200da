package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfTimeout = 30 * time.Second

// browserCandidates are looked up on PATH when no browser path is configured.
var browserCandidates = []string{"chromium-browser", "chromium", "google-chrome-stable", "google-chrome"}

// Paper is the printed page size in inches.
type Paper struct {
	Width     float64
	Height    float64
	Margin    float64
	Landscape bool
}

// Letter is US letter with half-inch margins; wide license grids fit without wrapping.
var Letter = Paper{Width: 8.5, Height: 11, Margin: 0.5}

// chromePrinter prints HTML with a headless Chrome it starts per report.
type chromePrinter struct {
	browserPath string
	paper       Paper
	timeout     time.Duration
}

// browser resolves the executable, preferring the configured path.
func (p chromePrinter) browser() (string, error) {
	if p.browserPath != "" {
		path, err := exec.LookPath(p.browserPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrPDFDependencyMissing, p.browserPath, err)
		}
		return path, nil
	}
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no chrome or chromium on PATH", ErrPDFDependencyMissing)
}

// print loads html into a blank tab and prints it. ctx bounds the whole browser session.
func (p chromePrinter) print(ctx context.Context, html, title string) (*Result, error) {
	path, err := p.browser()
	if err != nil {
		return nil, err
	}

	timeout := p.timeout
	if timeout <= 0 {
		timeout = pdfTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = p.paper.printParams().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}

	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

func (p Paper) printParams() *page.PrintToPDFParams {
	if p.Width <= 0 || p.Height <= 0 {
		p = Letter
	}
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(p.Landscape).
		WithPaperWidth(p.Width).
		WithPaperHeight(p.Height).
		WithMarginTop(p.Margin).
		WithMarginBottom(p.Margin).
		WithMarginLeft(p.Margin).
		WithMarginRight(p.Margin)
}

// sanitizeFilename keeps letters, digits, dashes and underscores, turning spaces into dashes.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}

	name := b.String()
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "provider-report"
	}
	return name
}

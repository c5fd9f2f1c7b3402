package pdf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/katakuxiko/agrochat/internal/model"
	"rsc.io/pdf"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrNoText      = errors.New("no text extracted from document")
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\v]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// Loader turns a document on disk into page-sized text units.
type Loader struct {
	// pdftotext is used when the pure-Go parser cannot read a file.
	// Empty disables the fallback.
	PdfToText string
}

func NewLoader() *Loader {
	return &Loader{PdfToText: "pdftotext"}
}

// Load extracts the pages of path, each stamped with Source = path.
func (l *Loader) Load(ctx context.Context, path string) ([]model.Page, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", path, err)
	}

	var pages []string
	switch {
	case mt.Is("application/pdf"):
		pages, err = ExtractPages(path)
		if err != nil && l.PdfToText != "" {
			pages, err = l.extractWithTool(ctx, path)
		}
	case strings.HasPrefix(mt.String(), "text/"):
		var raw []byte
		raw, err = os.ReadFile(path)
		pages = []string{string(raw)}
	default:
		return nil, fmt.Errorf("%s (%s): %w", path, mt.String(), ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	out := make([]model.Page, 0, len(pages))
	for i, text := range pages {
		text = Sanitize(text)
		if text == "" {
			continue
		}
		out = append(out, model.Page{Source: path, Number: i + 1, Text: text})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return out, nil
}

// ExtractPages reads a PDF with rsc.io/pdf, one string per page.
func ExtractPages(path string) (pages []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// rsc.io/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parse: %v", r)
		}
	}()

	r, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return nil, err
	}
	pages = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, pageText(p.Content().Text))
	}
	return pages, nil
}

// pageText rebuilds lines from positioned glyph runs.
func pageText(texts []pdf.Text) string {
	var sb strings.Builder
	lastY := math.NaN()
	lastEnd := 0.0
	for _, t := range texts {
		s := strings.ReplaceAll(t.S, "\x00", "")
		if s == "" {
			continue
		}
		switch {
		case math.IsNaN(lastY):
		case math.Abs(t.Y-lastY) > t.FontSize/2:
			sb.WriteString("\n")
		case t.X-lastEnd > t.FontSize/4:
			sb.WriteString(" ")
		}
		sb.WriteString(s)
		lastY = t.Y
		lastEnd = t.X + t.W
	}
	return sb.String()
}

// extractWithTool shells out to poppler's pdftotext; pages are separated by form feeds.
func (l *Loader) extractWithTool(ctx context.Context, path string) ([]string, error) {
	cmd := exec.CommandContext(ctx, l.PdfToText, "-enc", "UTF-8", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return strings.Split(string(out), "\f"), nil
}

// Sanitize strips NUL bytes and normalises whitespace while keeping paragraph breaks.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Package document renders a generated story as a downloadable PDF and as
// sanitized HTML for on-screen display. The two passes are independent:
// markdown emphasis is rendered in HTML but stays literal in the PDF.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"golang.org/x/text/encoding/charmap"

	"storyweaver/server/internal/session"
)

const (
	DefaultPageMargin = 15.0
	DefaultFontFamily = "Arial"

	headingSize = 16
	bodySize    = 12
	lineHeight  = 10

	utf8Family = "StoryFont"
)

var (
	// ErrNoChapters is returned when there is nothing to render.
	ErrNoChapters = errors.New("no chapters to render")
	// ErrUnsupportedText is returned when the story uses characters the
	// core fonts cannot encode and no font file is configured.
	ErrUnsupportedText = errors.New("text contains characters outside cp1252; configure document.font_file")
)

// Document is a rendered PDF.
type Document struct {
	Data  []byte
	Pages int
}

// Assembler lays out chapters one per page.
type Assembler struct {
	margin     float64
	fontFamily string
	fontFile   string
	compress   bool
}

type Option func(*Assembler)

// WithPageMargin sets the bottom margin that triggers a page break.
func WithPageMargin(margin float64) Option {
	return func(a *Assembler) {
		if margin > 0 {
			a.margin = margin
		}
	}
}

// WithFontFamily sets the core font used for headings and body text.
func WithFontFamily(family string) Option {
	return func(a *Assembler) {
		if family != "" {
			a.fontFamily = family
		}
	}
}

// WithFontFile sets a UTF-8 TrueType font that replaces the core font,
// so any script the font covers can be rendered.
func WithFontFile(path string) Option {
	return func(a *Assembler) {
		a.fontFile = path
	}
}

// WithCompression toggles stream compression in the PDF output.
func WithCompression(compress bool) Option {
	return func(a *Assembler) {
		a.compress = compress
	}
}

func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		margin:     DefaultPageMargin,
		fontFamily: DefaultFontFamily,
		compress:   true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Render produces the PDF. Each chapter starts on a new page with a
// centered bold heading; long bodies flow onto further pages.
func (a *Assembler) Render(chapters []session.ChapterText) (*Document, error) {
	if len(chapters) == 0 {
		return nil, ErrNoChapters
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(a.compress)
	pdf.SetAutoPageBreak(true, a.margin)

	family := a.fontFamily
	tr := func(s string) string { return s }
	if a.fontFile != "" {
		family = utf8Family
		pdf.AddUTF8Font(family, "", a.fontFile)
		pdf.AddUTF8Font(family, "B", a.fontFile)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to load font %s: %w", a.fontFile, err)
		}
	} else {
		for _, ch := range chapters {
			if r, ok := unencodable(Heading(ch) + ch.Content); ok {
				return nil, fmt.Errorf("chapter %d: %w (%q)", ch.Number, ErrUnsupportedText, r)
			}
		}
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	for _, ch := range chapters {
		pdf.AddPage()

		pdf.SetFont(family, "B", headingSize)
		pdf.MultiCell(0, lineHeight, tr(Heading(ch)), "", "C", false)
		pdf.Ln(lineHeight)

		pdf.SetFont(family, "", bodySize)
		pdf.MultiCell(0, lineHeight, tr(ch.Content), "", "", false)
	}

	pages := pdf.PageCount()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	return &Document{Data: buf.Bytes(), Pages: pages}, nil
}

// unencodable reports the first rune of s that cp1252 has no byte for.
func unencodable(s string) (rune, bool) {
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return r, true
		}
	}
	return 0, false
}

// Heading returns the page heading of a chapter.
func Heading(ch session.ChapterText) string {
	fallback := fmt.Sprintf("Chapter %d", ch.Number)
	if ch.Title == "" || ch.Title == fallback {
		return fallback
	}
	return fmt.Sprintf("Chapter %d: %s", ch.Number, ch.Title)
}

var (
	markdown = goldmark.New()
	policy   = bluemonday.UGCPolicy()
)

// RenderHTML converts the story markdown to sanitized HTML.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return string(policy.SanitizeBytes(buf.Bytes())), nil
}

// FileName returns the download name for a user-supplied name.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Generated_Story"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

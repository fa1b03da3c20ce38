// Package outline parses and rebuilds story outlines returned by the
// generation service.
//
// The default Markdown format follows this grammar:
//
//	outline    = "**Introduction**" NL NL intro NL NL chapter(1) ... chapter(N)
//	chapter(i) = "**Chapter " i ": " title "**" NL NL summary(i)
//	summary(i) = text up to "**Chapter " i+1 ": " or end of text
//
// Parsing is tolerant: a missing introduction yields an empty one and a
// missing chapter marker drops that chapter, recording its number in
// Outline.Missing.
package outline

import (
	"fmt"
	"regexp"
	"strings"
)

// Chapter is one outlined chapter.
type Chapter struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Outline is the editable form of a generated outline.
type Outline struct {
	Introduction string    `json:"introduction"`
	Chapters     []Chapter `json:"chapters"`
	Missing      []int     `json:"missing,omitempty"`
}

// Format converts between outline text and its structured form.
type Format interface {
	Parse(text string, chapters int) *Outline
	Render(o *Outline) string
}

// Markdown is the outline format requested from the generation service.
var Markdown Format = markdownFormat{}

var introPattern = regexp.MustCompile(`(?s)\*\*Introduction\*\*\n\n(.*?)\n\n\*\*Chapter 1:`)

type markdownFormat struct{}

func (markdownFormat) Parse(text string, chapters int) *Outline {
	o := &Outline{Chapters: []Chapter{}}

	if m := introPattern.FindStringSubmatch(text); m != nil {
		o.Introduction = strings.TrimSpace(m[1])
	}

	for i := 1; i <= chapters; i++ {
		header := regexp.MustCompile(fmt.Sprintf(`(?s)\*\*Chapter %d: (.*?)\*\*\n\n`, i))
		loc := header.FindStringSubmatchIndex(text)
		if loc == nil {
			o.Missing = append(o.Missing, i)
			continue
		}

		title := text[loc[2]:loc[3]]
		body := text[loc[1]:]
		if end := strings.Index(body, nextMarker(i+1)); end >= 0 {
			body = body[:end]
		}

		o.Chapters = append(o.Chapters, Chapter{
			Title:   strings.TrimSpace(title),
			Summary: strings.TrimSpace(body),
		})
	}

	return o
}

func (markdownFormat) Render(o *Outline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Introduction**\n\n%s\n\n", o.Introduction)
	for i, ch := range o.Chapters {
		fmt.Fprintf(&b, "**Chapter %d: %s**\n\n%s\n\n", i+1, ch.Title, ch.Summary)
	}
	return b.String()
}

func nextMarker(n int) string {
	return fmt.Sprintf("**Chapter %d: ", n)
}

// Parse parses text with the Markdown format.
func Parse(text string, chapters int) *Outline {
	return Markdown.Parse(text, chapters)
}

// Render rebuilds outline text with the Markdown format. Chapters are
// renumbered from 1 in slice order.
func Render(o *Outline) string {
	return Markdown.Render(o)
}

// Normalize collapses whitespace so outlines can be compared regardless of
// line wrapping.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

package prompts

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	OutlineTemplate = "story_outline"
	ChapterTemplate = "story_chapter"
)

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// TemplateEngine manages prompt templates
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template represents a prompt template with variables
type Template struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Description string   `json:"description"`
}

// TemplateContext holds variables for template rendering
type TemplateContext struct {
	// Story parameters
	Genre          string `json:"genre"`
	MainCharacters string `json:"main_characters"`
	PlotElements   string `json:"plot_elements"`
	NumChapters    int    `json:"num_chapters"`
	WritingStyle   string `json:"writing_style"`
	StoryTone      string `json:"story_tone"`
	Complexity     int    `json:"complexity"`
	Language       string `json:"language"`

	// Chapter generation
	StoryOutline   string `json:"story_outline"`
	GeneratedStory string `json:"generated_story"`
	Chapter        int    `json:"chapter"`

	Custom map[string]string `json:"custom"`
}

// NewTemplateEngine creates a new template engine
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		templates: make(map[string]*Template),
	}
}

// NewDefaultEngine returns an engine with the story templates registered.
func NewDefaultEngine() *TemplateEngine {
	e := NewTemplateEngine()
	for _, tmpl := range defaultTemplates() {
		e.RegisterTemplate(tmpl)
	}
	return e
}

// RegisterTemplate registers a template, filling Variables from its content.
func (e *TemplateEngine) RegisterTemplate(tmpl *Template) {
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = ParseTemplateVariables(tmpl.Content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.Name] = tmpl
}

// GetTemplate retrieves a template by name
func (e *TemplateEngine) GetTemplate(name string) (*Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return tmpl, nil
}

// Render renders a template with the given context
func (e *TemplateEngine) Render(templateName string, ctx *TemplateContext) (string, error) {
	tmpl, err := e.GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	// Unknown placeholders are left as-is.
	return varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		varName := varRegex.FindStringSubmatch(match)[1]
		if value, ok := ctx.value(varName); ok {
			return value
		}
		return match
	}), nil
}

func (c *TemplateContext) value(varName string) (string, bool) {
	switch varName {
	case "genre":
		return c.Genre, true
	case "main_characters":
		return orNone(c.MainCharacters), true
	case "plot_elements":
		return orNone(c.PlotElements), true
	case "num_chapters":
		return strconv.Itoa(c.NumChapters), true
	case "writing_style":
		return c.WritingStyle, true
	case "story_tone":
		return c.StoryTone, true
	case "complexity":
		return strconv.Itoa(c.Complexity), true
	case "language":
		return c.Language, true
	case "story_outline":
		return c.StoryOutline, true
	case "generated_story":
		return orNone(c.GeneratedStory), true
	case "chapter":
		return strconv.Itoa(c.Chapter), true
	default:
		val, ok := c.Custom[varName]
		return val, ok
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// ParseTemplateVariables extracts variables from a template, sorted.
func ParseTemplateVariables(templateContent string) []string {
	matches := varRegex.FindAllStringSubmatch(templateContent, -1)

	uniqueVars := make(map[string]bool)
	for _, match := range matches {
		uniqueVars[match[1]] = true
	}

	vars := make([]string, 0, len(uniqueVars))
	for v := range uniqueVars {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func defaultTemplates() []*Template {
	return []*Template{
		{
			Name:        OutlineTemplate,
			Description: "Story outline: introduction plus one summary per chapter",
			Content: `You are an experienced novelist planning a {{genre}} story.

## Main characters
{{main_characters}}

## Plot elements
{{plot_elements}}

## Requirements
- Writing style: {{writing_style}}
- Tone: {{story_tone}}
- Complexity: {{complexity}} on a scale of 1 to 10
- Number of chapters: {{num_chapters}}
- Write the outline in {{language}}

Reply with the outline only, using exactly this layout:

**Introduction**

<one paragraph introducing the story>

**Chapter 1: <title>**

<summary of chapter 1>

Continue with "**Chapter N: <title>**" blocks until chapter {{num_chapters}}.`,
		},
		{
			Name:        ChapterTemplate,
			Description: "Full text of a single chapter, continuing the story so far",
			Content: `You are an experienced novelist writing a story chapter by chapter.

## Outline
{{story_outline}}

## Story so far
{{generated_story}}

## Task
Write chapter {{chapter}} in full, following the outline and continuing the story so far.
- Writing style: {{writing_style}}
- Tone: {{story_tone}}
- Complexity: {{complexity}} on a scale of 1 to 10
- Write in {{language}}

Start your reply with "**Chapter {{chapter}}: <title>**" on its own line, followed by the chapter text.`,
		},
	}
}

package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Outline(t *testing.T) {
	e := NewDefaultEngine()

	out, err := e.Render(OutlineTemplate, &TemplateContext{
		Genre:          "Fantasy",
		MainCharacters: "Aria\n\nBram",
		NumChapters:    2,
		WritingStyle:   "Poetic",
		StoryTone:      "Dark",
		Complexity:     7,
		Language:       "English",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "planning a Fantasy story")
	assert.Contains(t, out, "Aria\n\nBram")
	assert.Contains(t, out, "## Plot elements\n(none)")
	assert.Contains(t, out, "Number of chapters: 2")
	assert.Contains(t, out, "Complexity: 7")
	assert.Contains(t, out, "**Introduction**")
	assert.NotContains(t, out, "{{")
}

func TestRender_Chapter(t *testing.T) {
	e := NewDefaultEngine()

	out, err := e.Render(ChapterTemplate, &TemplateContext{
		StoryOutline:   "**Introduction**\n\nIntro.",
		GeneratedStory: "**Chapter 1: One**\n\nText.\n\n",
		Chapter:        2,
		Language:       "French",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Write chapter 2 in full")
	assert.Contains(t, out, `"**Chapter 2: <title>**"`)
	assert.Contains(t, out, "**Chapter 1: One**")
	assert.Contains(t, out, "Write in French")
}

func TestRender_CustomAndUnknown(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(&Template{Name: "t", Content: "{{genre}} / {{mood}} / {{unknown}}"})

	out, err := e.Render("t", &TemplateContext{Genre: "Noir", Custom: map[string]string{"mood": "rain"}})
	require.NoError(t, err)
	assert.Equal(t, "Noir / rain / {{unknown}}", out)

	_, err = e.Render("missing", &TemplateContext{})
	assert.Error(t, err)
}

func TestParseTemplateVariables(t *testing.T) {
	vars := ParseTemplateVariables("{{b}} {{a}} {{b}} {not} {{c_d}}")
	assert.Equal(t, []string{"a", "b", "c_d"}, vars)

	tmpl, err := NewDefaultEngine().GetTemplate(ChapterTemplate)
	require.NoError(t, err)
	assert.Contains(t, tmpl.Variables, "generated_story")
	assert.Contains(t, tmpl.Variables, "chapter")
}

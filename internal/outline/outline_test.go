package outline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoChapterOutline = `**Introduction**

In the drowned city of Vel, a lamplighter finds a map.

**Chapter 1: The Lamplighter**

Aria discovers the map hidden in a lamp.
She shows it to Bram.

**Chapter 2: Under the Tide**

They dive beneath the harbour and find the vault.
`

func TestParse(t *testing.T) {
	o := Parse(twoChapterOutline, 2)

	assert.Equal(t, "In the drowned city of Vel, a lamplighter finds a map.", o.Introduction)
	require.Len(t, o.Chapters, 2)
	assert.Equal(t, Chapter{
		Title:   "The Lamplighter",
		Summary: "Aria discovers the map hidden in a lamp.\nShe shows it to Bram.",
	}, o.Chapters[0])
	assert.Equal(t, Chapter{
		Title:   "Under the Tide",
		Summary: "They dive beneath the harbour and find the vault.",
	}, o.Chapters[1])
	assert.Empty(t, o.Missing)
}

func TestParse_MissingChapterIsOmitted(t *testing.T) {
	text := strings.Replace(twoChapterOutline, "**Chapter 2: Under the Tide**", "Chapter Two - Under the Tide", 1)

	o := Parse(text, 2)

	require.Len(t, o.Chapters, 1)
	assert.Equal(t, []int{2}, o.Missing)
	// Without the marker, the rest of the text belongs to chapter 1.
	assert.Contains(t, o.Chapters[0].Summary, "Chapter Two - Under the Tide")
}

func TestParse_FewerChaptersThanRequested(t *testing.T) {
	o := Parse(twoChapterOutline, 4)

	assert.Len(t, o.Chapters, 2)
	assert.Equal(t, []int{3, 4}, o.Missing)
}

func TestParse_NoIntroduction(t *testing.T) {
	o := Parse("**Chapter 1: Alone**\n\nJust one chapter.", 1)

	assert.Empty(t, o.Introduction)
	require.Len(t, o.Chapters, 1)
	assert.Equal(t, "Alone", o.Chapters[0].Title)
	assert.Equal(t, "Just one chapter.", o.Chapters[0].Summary)
}

func TestParse_Garbage(t *testing.T) {
	o := Parse("the service replied with something else entirely", 3)

	assert.Empty(t, o.Introduction)
	assert.Empty(t, o.Chapters)
	assert.Equal(t, []int{1, 2, 3}, o.Missing)
}

func TestRender_Renumbers(t *testing.T) {
	o := &Outline{
		Introduction: "Intro.",
		Chapters: []Chapter{
			{Title: "First", Summary: "One."},
			{Title: "Second", Summary: "Two."},
		},
	}

	want := "**Introduction**\n\nIntro.\n\n" +
		"**Chapter 1: First**\n\nOne.\n\n" +
		"**Chapter 2: Second**\n\nTwo.\n\n"
	assert.Equal(t, want, Render(o))
}

func TestRoundTrip(t *testing.T) {
	for n := 1; n <= 10; n++ {
		t.Run(fmt.Sprintf("%d chapters", n), func(t *testing.T) {
			var b strings.Builder
			b.WriteString("**Introduction**\n\nOnce upon a time.\n\n")
			for i := 1; i <= n; i++ {
				fmt.Fprintf(&b, "**Chapter %d: Title %d**\n\nSummary of chapter %d.\nSecond line.\n\n", i, i, i)
			}
			original := b.String()

			parsed := Parse(original, n)
			require.Len(t, parsed.Chapters, n)

			rebuilt := Render(parsed)
			assert.Equal(t, Normalize(original), Normalize(rebuilt))

			// Parsing the rebuilt text is a fixed point.
			assert.Equal(t, parsed, Parse(rebuilt, n))
		})
	}
}

func TestEditedTitleSurvivesReconstruction(t *testing.T) {
	o := Parse(twoChapterOutline, 2)
	o.Chapters[1].Title = "The Vault of Salt"

	rebuilt := Render(o)

	assert.Contains(t, rebuilt, "**Chapter 2: The Vault of Salt**")
	assert.NotContains(t, rebuilt, "Under the Tide")
}

package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyweaver/server/internal/document"
	"storyweaver/server/internal/outline"
	"storyweaver/server/internal/session"
)

const fantasyOutline = `**Introduction**

A lamplighter and a smuggler search the drowned city of Vel.

**Chapter 1: The Lamplighter**

Aria finds a map inside a lamp.

**Chapter 2: Under the Tide**

Aria and Bram dive for the vault.
`

type recordingArchive struct {
	saved []string
}

func (a *recordingArchive) SaveStory(ctx context.Context, st *session.State) error {
	a.saved = append(a.saved, st.ID)
	return nil
}

func fantasyState() *session.State {
	st := session.New()
	st.Genre = "Fantasy"
	_ = st.Characters.SetText(0, "Name: Aria\nRole: Main")
	second := st.Characters.Add()
	_ = st.Characters.SetText(second.ID, "Name: Bram\nRole: Supporting")
	_ = st.Plots.SetText(0, "Setting: the drowned city of Vel")
	st.Settings.NumChapters = 2
	st.Settings.Language = "English"
	return st
}

func TestParametersFrom(t *testing.T) {
	st := fantasyState()
	st.Settings.Language = session.OtherLanguage
	st.Settings.CustomLanguage = "Swahili"

	p := ParametersFrom(st)

	assert.Equal(t, "Fantasy", p.Genre)
	assert.Equal(t, "Name: Aria\nRole: Main\n\nName: Bram\nRole: Supporting", p.MainCharacters)
	assert.Equal(t, "Setting: the drowned city of Vel", p.PlotElements)
	assert.Equal(t, 2, p.NumChapters)
	assert.Equal(t, "Swahili", p.Language)
	assert.NoError(t, p.Validate())
}

func TestStoryParameters_Validate(t *testing.T) {
	valid := func() *StoryParameters { return ParametersFrom(fantasyState()) }

	tests := []struct {
		name   string
		mutate func(p *StoryParameters)
	}{
		{"missing genre", func(p *StoryParameters) { p.Genre = "" }},
		{"missing language", func(p *StoryParameters) { p.Language = "" }},
		{"too many chapters", func(p *StoryParameters) { p.NumChapters = 11 }},
		{"zero chapters", func(p *StoryParameters) { p.NumChapters = 0 }},
		{"complexity out of range", func(p *StoryParameters) { p.Complexity = 0 }},
		{"unknown style", func(p *StoryParameters) { p.WritingStyle = "Baroque" }},
		{"unknown tone", func(p *StoryParameters) { p.StoryTone = "Smug" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParameters)
		})
	}
}

func TestSplitChapter(t *testing.T) {
	ch := SplitChapter("**Chapter 3: Ashes**\n\nThe fire spread.\n", 3)
	assert.Equal(t, session.ChapterText{Number: 3, Title: "Ashes", Content: "The fire spread."}, ch)

	raw := "The fire spread without a heading."
	ch = SplitChapter(raw, 4)
	assert.Equal(t, session.ChapterText{Number: 4, Title: "Chapter 4", Content: raw}, ch)

	// The heading must open the response.
	ch = SplitChapter("Prologue\n**Chapter 5: Late**", 5)
	assert.Equal(t, "Chapter 5", ch.Title)
}

func TestGenerateOutline(t *testing.T) {
	gen := &fakeGenerator{outline: fantasyOutline}
	e := NewStoryEngine(gen, document.NewAssembler())
	st := fantasyState()
	st.FullStoryGenerated = true
	st.FullStory = "stale"

	require.NoError(t, e.GenerateOutline(context.Background(), st))

	require.Len(t, gen.outlineCalls, 1)
	assert.Equal(t, "Fantasy", gen.outlineCalls[0].Genre)
	assert.True(t, st.StoryGenerated)
	assert.False(t, st.FullStoryGenerated)
	assert.Empty(t, st.FullStory)
	assert.Equal(t, fantasyOutline, st.Outline)
	assert.Equal(t, outline.Normalize(fantasyOutline), outline.Normalize(st.ModifiedOutline))
}

func TestGenerateOutline_InvalidParameters(t *testing.T) {
	gen := &fakeGenerator{outline: fantasyOutline}
	e := NewStoryEngine(gen, document.NewAssembler())
	st := fantasyState()
	st.Genre = ""

	err := e.GenerateOutline(context.Background(), st)

	assert.ErrorIs(t, err, ErrInvalidParameters)
	assert.Empty(t, gen.outlineCalls)
	assert.False(t, st.StoryGenerated)
}

func TestGenerateOutline_FailureKeepsState(t *testing.T) {
	gen := &fakeGenerator{outline: fantasyOutline}
	e := NewStoryEngine(gen, document.NewAssembler())
	st := fantasyState()
	require.NoError(t, e.GenerateOutline(context.Background(), st))
	previous := st.ModifiedOutline

	gen.outlineErr = errServiceDown
	err := e.GenerateOutline(context.Background(), st)

	assert.ErrorIs(t, err, errServiceDown)
	assert.True(t, st.StoryGenerated)
	assert.Equal(t, previous, st.ModifiedOutline)
}

func TestEditOutline(t *testing.T) {
	e := NewStoryEngine(&fakeGenerator{}, document.NewAssembler())
	st := fantasyState()

	assert.ErrorIs(t, e.EditOutline(st, &outline.Outline{}), ErrOutlineNotGenerated)

	st.StoryGenerated = true
	st.Outline = fantasyOutline
	require.NoError(t, e.EditOutline(st, &outline.Outline{
		Introduction: " New intro ",
		Chapters:     []outline.Chapter{{Title: "Only", Summary: "Everything happens."}},
	}))

	assert.Equal(t, "**Introduction**\n\nNew intro\n\n**Chapter 1: Only**\n\nEverything happens.\n\n", st.ModifiedOutline)
	assert.Equal(t, fantasyOutline, st.Outline, "the generated outline is never edited")
}

func TestEndToEnd(t *testing.T) {
	gen := &fakeGenerator{outline: fantasyOutline}
	archive := &recordingArchive{}
	e := NewStoryEngine(gen, document.NewAssembler(document.WithCompression(false)), WithArchive(archive))
	st := fantasyState()
	ctx := context.Background()

	require.NoError(t, e.GenerateOutline(ctx, st))
	require.Len(t, gen.outlineCalls, 1)

	o, err := e.Outline(st)
	require.NoError(t, err)
	assert.Equal(t, "A lamplighter and a smuggler search the drowned city of Vel.", o.Introduction)
	require.Len(t, o.Chapters, 2)

	o.Chapters[1].Title = "The Vault of Salt"
	require.NoError(t, e.EditOutline(st, o))
	assert.Contains(t, st.ModifiedOutline, "**Chapter 2: The Vault of Salt**")

	var updates []Progress
	require.NoError(t, e.GenerateFullStory(ctx, st, func(p Progress) { updates = append(updates, p) }))

	require.Len(t, gen.chapterCalls, 2)
	assert.Equal(t, 1, gen.chapterCalls[0].Chapter)
	assert.Empty(t, gen.chapterCalls[0].GeneratedStory)
	assert.Contains(t, gen.chapterCalls[0].StoryOutline, "The Vault of Salt")
	// The second call sees the full text of the first.
	assert.Equal(t, "**Chapter 1: Generated 1**\n\nBody of chapter 1.\n\n", gen.chapterCalls[1].GeneratedStory)

	assert.True(t, st.FullStoryGenerated)
	assert.Equal(t, "**Chapter 1: Generated 1**\n\nBody of chapter 1.\n\n**Chapter 2: Generated 2**\n\nBody of chapter 2.\n\n", st.FullStory)
	require.Len(t, st.Chapters, 2)
	assert.Equal(t, "Generated 2", st.Chapters[1].Title)
	assert.Equal(t, "Body of chapter 2.", st.Chapters[1].Content)
	assert.True(t, strings.HasPrefix(string(st.Document), "%PDF-"))
	assert.Equal(t, 2, st.DocumentPages)
	assert.Contains(t, string(st.Document), "Chapter 1: Generated 1")
	assert.Contains(t, string(st.Document), "Chapter 2: Generated 2")

	require.Len(t, updates, 3)
	assert.Equal(t, 0.5, updates[0].Fraction)
	assert.Equal(t, 1.0, updates[1].Fraction)
	assert.True(t, updates[2].Done)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Fraction, updates[i-1].Fraction)
	}

	assert.Equal(t, []string{st.ID}, archive.saved)
	assert.Equal(t, int64(0), e.InFlight())
}

func TestGenerateFullStory_ProgressIsExact(t *testing.T) {
	gen := &fakeGenerator{outline: fantasyOutline}
	e := NewStoryEngine(gen, document.NewAssembler())
	st := fantasyState()
	st.Settings.NumChapters = 7
	require.NoError(t, e.GenerateOutline(context.Background(), st))

	var fractions []float64
	require.NoError(t, e.GenerateFullStory(context.Background(), st, func(p Progress) {
		if !p.Done {
			fractions = append(fractions, p.Fraction)
		}
	}))

	require.Len(t, fractions, 7)
	for i, f := range fractions {
		assert.Equal(t, float64(i+1)/7, f)
	}
}

func TestGenerateFullStory_FailureOnSecondChapter(t *testing.T) {
	gen := &fakeGenerator{outline: fantasyOutline, failChapter: 2}
	archive := &recordingArchive{}
	e := NewStoryEngine(gen, document.NewAssembler(), WithArchive(archive))
	st := fantasyState()
	ctx := context.Background()
	require.NoError(t, e.GenerateOutline(ctx, st))
	outlineBefore := st.ModifiedOutline

	var last Progress
	err := e.GenerateFullStory(ctx, st, func(p Progress) { last = p })

	require.Error(t, err)
	assert.ErrorIs(t, err, errServiceDown)
	assert.Len(t, gen.chapterCalls, 2)
	assert.False(t, st.FullStoryGenerated)
	assert.Empty(t, st.FullStory)
	assert.Empty(t, st.Document)
	assert.True(t, st.StoryGenerated)
	assert.Equal(t, outlineBefore, st.ModifiedOutline)
	assert.NotEmpty(t, last.Error)
	assert.Empty(t, archive.saved)

	// The outline can still be edited after the failure.
	o, err := e.Outline(st)
	require.NoError(t, err)
	assert.NoError(t, e.EditOutline(st, o))
}

func TestGenerateFullStory_Guards(t *testing.T) {
	e := NewStoryEngine(&fakeGenerator{}, document.NewAssembler())
	ctx := context.Background()

	st := fantasyState()
	assert.ErrorIs(t, e.GenerateFullStory(ctx, st, nil), ErrOutlineNotGenerated)

	st.StoryGenerated = true
	st.ModifiedOutline = "   "
	assert.ErrorIs(t, e.GenerateFullStory(ctx, st, nil), ErrEmptyOutline)

	st.ModifiedOutline = outline.Render(&outline.Outline{})
	assert.ErrorIs(t, e.GenerateFullStory(ctx, st, nil), ErrEmptyOutline)
}

func TestGenerateFullStory_RejectsConcurrentRun(t *testing.T) {
	e := NewStoryEngine(&fakeGenerator{}, document.NewAssembler())
	st := fantasyState()
	st.StoryGenerated = true
	st.ModifiedOutline = fantasyOutline

	require.True(t, e.begin(st.ID))
	defer e.end(st.ID)

	assert.ErrorIs(t, e.GenerateFullStory(context.Background(), st, nil), ErrGenerationInProgress)
}

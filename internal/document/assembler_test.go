package document

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyweaver/server/internal/session"
)

func TestRender_OnePagePerChapter(t *testing.T) {
	a := NewAssembler(WithCompression(false))

	doc, err := a.Render([]session.ChapterText{
		{Number: 1, Title: "The Lamplighter", Content: "Aria lit the lamps of Vel."},
		{Number: 2, Title: "The Vault of Salt", Content: "They dove beneath the **harbour**."},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Pages)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.True(t, bytes.Contains(doc.Data, []byte("Chapter 1: The Lamplighter")))
	assert.True(t, bytes.Contains(doc.Data, []byte("Chapter 2: The Vault of Salt")))
	// Markdown markers stay literal in the printable body.
	assert.True(t, bytes.Contains(doc.Data, []byte("**harbour**")))
}

func TestRender_LongChapterPaginates(t *testing.T) {
	a := NewAssembler()
	body := strings.Repeat("The tide rose over the city and nobody noticed. ", 400)

	doc, err := a.Render([]session.ChapterText{{Number: 1, Title: "Flood", Content: body}})
	require.NoError(t, err)

	assert.Greater(t, doc.Pages, 1)
}

func TestRender_WesternEuropeanText(t *testing.T) {
	doc, err := NewAssembler().Render([]session.ChapterText{
		{Number: 1, Title: "Café Noir", Content: "L’été à Zürich, señor."},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
}

func TestRender_RejectsTextOutsideCoreFont(t *testing.T) {
	_, err := NewAssembler(WithCompression(false)).Render([]session.ChapterText{
		{Number: 1, Title: "Prologue", Content: "Once upon a time."},
		{Number: 2, Title: "龙之谷", Content: "很久以前，有一条龙。 Привет мир"},
	})
	require.ErrorIs(t, err, ErrUnsupportedText)
	assert.Contains(t, err.Error(), "chapter 2")
}

func TestRender_UTF8FontFile(t *testing.T) {
	a := NewAssembler(WithCompression(false), WithFontFile("testdata/DejaVuSansCondensed.ttf"))

	doc, err := a.Render([]session.ChapterText{
		{Number: 1, Title: "Начало", Content: "Привет мир. Жил-был дракон."},
		{Number: 2, Title: "Конец", Content: "Дракон улетел."},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, doc.Pages)
	assert.True(t, bytes.Contains(doc.Data, []byte("/Encoding /Identity-H")))
	assert.True(t, bytes.Contains(doc.Data, []byte("/FontFile2")))
}

func TestRender_MissingFontFile(t *testing.T) {
	a := NewAssembler(WithFontFile("testdata/missing.ttf"))

	_, err := a.Render([]session.ChapterText{{Number: 1, Content: "Hello"}})
	assert.Error(t, err)
}

func TestRender_NoChapters(t *testing.T) {
	_, err := NewAssembler().Render(nil)
	assert.ErrorIs(t, err, ErrNoChapters)
}

func TestHeading(t *testing.T) {
	assert.Equal(t, "Chapter 3", Heading(session.ChapterText{Number: 3, Title: "Chapter 3"}))
	assert.Equal(t, "Chapter 3", Heading(session.ChapterText{Number: 3}))
	assert.Equal(t, "Chapter 3: Ashes", Heading(session.ChapterText{Number: 3, Title: "Ashes"}))
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("**Chapter 1: Ashes**\n\nThe *fire* spread.<script>alert(1)</script>")
	require.NoError(t, err)

	assert.Contains(t, html, "<strong>Chapter 1: Ashes</strong>")
	assert.Contains(t, html, "<em>fire</em>")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "**")
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My_Story", "My_Story.pdf"},
		{"  ", "Generated_Story.pdf"},
		{"", "Generated_Story.pdf"},
		{"Saga.PDF", "Saga.PDF"},
		{"tale.pdf", "tale.pdf"},
		{"draft.txt", "draft.txt.pdf"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.in), "input %q", tt.in)
	}
}

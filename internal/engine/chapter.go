package engine

import (
	"fmt"
	"regexp"
	"strings"

	"storyweaver/server/internal/session"
)

var (
	chapterTitlePattern   = regexp.MustCompile(`^\*\*Chapter\s+\d+:\s*(.*?)\*\*`)
	chapterHeadingPattern = regexp.MustCompile(`^\*\*Chapter\s+\d+:\s*.*?\*\*\n*`)
)

// SplitChapter separates the "**Chapter N: Title**" line a generated
// chapter starts with from its body. Without that line the title is
// "Chapter n" and the whole response is the body.
func SplitChapter(text string, n int) session.ChapterText {
	m := chapterTitlePattern.FindStringSubmatch(text)
	if m == nil {
		return session.ChapterText{
			Number:  n,
			Title:   fmt.Sprintf("Chapter %d", n),
			Content: text,
		}
	}

	return session.ChapterText{
		Number:  n,
		Title:   strings.TrimSpace(m[1]),
		Content: strings.TrimSpace(chapterHeadingPattern.ReplaceAllString(text, "")),
	}
}

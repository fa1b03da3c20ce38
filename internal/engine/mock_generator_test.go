package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errServiceDown = errors.New("service unavailable")

// fakeGenerator records every call and replies with canned text.
type fakeGenerator struct {
	mu sync.Mutex

	outline    string
	outlineErr error
	// failChapter makes GenerateChapter fail for that chapter index.
	failChapter int

	outlineCalls []StoryParameters
	chapterCalls []ChapterRequest
}

func (f *fakeGenerator) GenerateOutline(ctx context.Context, params *StoryParameters) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outlineCalls = append(f.outlineCalls, *params)
	if f.outlineErr != nil {
		return "", f.outlineErr
	}
	return f.outline, nil
}

func (f *fakeGenerator) GenerateChapter(ctx context.Context, req *ChapterRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chapterCalls = append(f.chapterCalls, *req)
	if req.Chapter == f.failChapter {
		return "", errServiceDown
	}
	return fmt.Sprintf("**Chapter %d: Generated %d**\n\nBody of chapter %d.", req.Chapter, req.Chapter, req.Chapter), nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"storyweaver/server/internal/document"
	"storyweaver/server/internal/outline"
	"storyweaver/server/internal/session"
)

var (
	ErrOutlineNotGenerated  = errors.New("no story outline has been generated yet")
	ErrEmptyOutline         = errors.New("the outline is empty. Please provide an outline to generate the full story")
	ErrStoryNotGenerated    = errors.New("the full story has not been generated yet")
	ErrGenerationInProgress = errors.New("a story is already being generated for this session")
)

// Progress reports chapter generation for one session.
type Progress struct {
	SessionID string  `json:"session_id"`
	Chapter   int     `json:"chapter"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
	Done      bool    `json:"done"`
	Error     string  `json:"error,omitempty"`
}

// ProgressFunc receives progress updates. It must not block.
type ProgressFunc func(Progress)

// Archive stores finished stories.
type Archive interface {
	SaveStory(ctx context.Context, st *session.State) error
}

// StoryEngine runs the outline → edit → full story workflow on a session
// state. It never persists the state itself; callers save it afterwards.
type StoryEngine struct {
	generator Generator
	assembler *document.Assembler
	format    outline.Format
	archive   Archive
	logger    *zap.Logger

	mu       sync.Mutex
	running  map[string]bool
	inFlight atomic.Int64
}

type Option func(*StoryEngine)

// WithFormat replaces the outline format.
func WithFormat(f outline.Format) Option {
	return func(e *StoryEngine) {
		e.format = f
	}
}

// WithArchive stores every finished story in a.
func WithArchive(a Archive) Option {
	return func(e *StoryEngine) {
		e.archive = a
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *StoryEngine) {
		e.logger = logger
	}
}

// NewStoryEngine creates a new story engine
func NewStoryEngine(generator Generator, assembler *document.Assembler, opts ...Option) *StoryEngine {
	e := &StoryEngine{
		generator: generator,
		assembler: assembler,
		format:    outline.Markdown,
		logger:    zap.NewNop(),
		running:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "story_engine"))
	return e
}

// InFlight returns the number of generation calls currently running.
func (e *StoryEngine) InFlight() int64 {
	return e.inFlight.Load()
}

// GenerateOutline asks the service for an outline built from the current
// parameters. On success the session moves to the outline stage and any
// previous full story is discarded; on failure st is left unchanged.
func (e *StoryEngine) GenerateOutline(ctx context.Context, st *session.State) error {
	params := ParametersFrom(st)
	if err := params.Validate(); err != nil {
		return err
	}

	e.inFlight.Inc()
	text, err := e.generator.GenerateOutline(ctx, params)
	e.inFlight.Dec()
	if err != nil {
		e.logger.Warn("outline generation failed", zap.String("session_id", st.ID), zap.Error(err))
		return fmt.Errorf("failed to generate outline: %w", err)
	}

	parsed := e.format.Parse(text, params.NumChapters)
	if len(parsed.Missing) > 0 {
		e.logger.Info("outline is missing chapters",
			zap.String("session_id", st.ID),
			zap.Ints("missing", parsed.Missing))
	}

	st.Outline = text
	st.ModifiedOutline = e.format.Render(parsed)
	st.StoryGenerated = true
	st.ClearStory()

	e.logger.Info("outline generated",
		zap.String("session_id", st.ID),
		zap.Int("chapters", len(parsed.Chapters)))
	return nil
}

// Outline returns the editable outline of st.
func (e *StoryEngine) Outline(st *session.State) (*outline.Outline, error) {
	if !st.StoryGenerated {
		return nil, ErrOutlineNotGenerated
	}
	return e.format.Parse(st.ModifiedOutline, st.Settings.NumChapters), nil
}

// EditOutline replaces the modified outline with edited. The generated
// outline is kept as it was.
func (e *StoryEngine) EditOutline(st *session.State, edited *outline.Outline) error {
	if !st.StoryGenerated {
		return ErrOutlineNotGenerated
	}

	clean := &outline.Outline{
		Introduction: strings.TrimSpace(edited.Introduction),
		Chapters:     make([]outline.Chapter, 0, len(edited.Chapters)),
	}
	for _, ch := range edited.Chapters {
		clean.Chapters = append(clean.Chapters, outline.Chapter{
			Title:   strings.TrimSpace(ch.Title),
			Summary: strings.TrimSpace(ch.Summary),
		})
	}

	st.ModifiedOutline = e.format.Render(clean)
	return nil
}

// GenerateFullStory writes every chapter in order, each call seeing the
// outline and all chapters written so far. Any failure aborts the whole run
// and leaves st unchanged.
func (e *StoryEngine) GenerateFullStory(ctx context.Context, st *session.State, progress ProgressFunc) error {
	if !st.StoryGenerated {
		return ErrOutlineNotGenerated
	}
	if e.isEmptyOutline(st) {
		return ErrEmptyOutline
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	if !e.begin(st.ID) {
		return ErrGenerationInProgress
	}
	defer e.end(st.ID)

	total := st.Settings.NumChapters
	var story strings.Builder
	chapters := make([]session.ChapterText, 0, total)

	for i := 1; i <= total; i++ {
		req := &ChapterRequest{
			StoryOutline:   st.ModifiedOutline,
			GeneratedStory: story.String(),
			WritingStyle:   st.Settings.WritingStyle,
			StoryTone:      st.Settings.StoryTone,
			Complexity:     st.Settings.Complexity,
			Language:       st.Settings.EffectiveLanguage(),
			Chapter:        i,
		}
		if err := req.Validate(); err != nil {
			return err
		}

		e.inFlight.Inc()
		text, err := e.generator.GenerateChapter(ctx, req)
		e.inFlight.Dec()
		if err != nil {
			e.logger.Warn("chapter generation failed",
				zap.String("session_id", st.ID),
				zap.Int("chapter", i),
				zap.Error(err))
			progress(Progress{SessionID: st.ID, Chapter: i - 1, Total: total, Fraction: fraction(i-1, total), Error: err.Error()})
			return fmt.Errorf("failed to generate chapter %d: %w", i, err)
		}

		story.WriteString(text)
		story.WriteString("\n\n")
		chapters = append(chapters, SplitChapter(text, i))

		progress(Progress{SessionID: st.ID, Chapter: i, Total: total, Fraction: fraction(i, total)})
	}

	doc, err := e.assembler.Render(chapters)
	if err != nil {
		return fmt.Errorf("failed to assemble document: %w", err)
	}

	st.FullStory = story.String()
	st.Chapters = chapters
	st.Document = doc.Data
	st.DocumentPages = doc.Pages
	st.FullStoryGenerated = true

	progress(Progress{SessionID: st.ID, Chapter: total, Total: total, Fraction: 1, Done: true})
	e.logger.Info("full story generated",
		zap.String("session_id", st.ID),
		zap.Int("chapters", total),
		zap.Int("pages", doc.Pages))

	if e.archive != nil {
		if err := e.archive.SaveStory(ctx, st); err != nil {
			e.logger.Warn("failed to archive story", zap.String("session_id", st.ID), zap.Error(err))
		}
	}
	return nil
}

// isEmptyOutline reports whether the modified outline carries no text
// beyond its markers.
func (e *StoryEngine) isEmptyOutline(st *session.State) bool {
	if strings.TrimSpace(st.ModifiedOutline) == "" {
		return true
	}
	parsed := e.format.Parse(st.ModifiedOutline, st.Settings.NumChapters)
	return parsed.Introduction == "" && len(parsed.Chapters) == 0
}

func (e *StoryEngine) begin(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[id] {
		return false
	}
	e.running[id] = true
	return true
}

func (e *StoryEngine) end(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, id)
}

func fraction(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

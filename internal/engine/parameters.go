package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"storyweaver/server/internal/session"
)

// ErrInvalidParameters is returned when the story form is incomplete or
// out of range.
var ErrInvalidParameters = errors.New("please fill in all the inputs")

var validate = validator.New()

// StoryParameters is the outline request sent to the generation service.
type StoryParameters struct {
	Genre          string `json:"genre" validate:"required"`
	MainCharacters string `json:"main_characters"`
	PlotElements   string `json:"plot_elements"`
	NumChapters    int    `json:"num_chapters" validate:"min=1,max=10"`
	WritingStyle   string `json:"writing_style" validate:"oneof=Descriptive Minimalist Poetic Dramatic Humorous"`
	StoryTone      string `json:"story_tone" validate:"oneof=Serious Light-hearted Mysterious Inspirational Dark"`
	Complexity     int    `json:"complexity" validate:"min=1,max=10"`
	Language       string `json:"language" validate:"required"`
}

// ChapterRequest asks for the full text of one chapter.
type ChapterRequest struct {
	StoryOutline   string `json:"story_outline" validate:"required"`
	GeneratedStory string `json:"generated_story"`
	WritingStyle   string `json:"writing_style" validate:"oneof=Descriptive Minimalist Poetic Dramatic Humorous"`
	StoryTone      string `json:"story_tone" validate:"oneof=Serious Light-hearted Mysterious Inspirational Dark"`
	Complexity     int    `json:"complexity" validate:"min=1,max=10"`
	Language       string `json:"language" validate:"required"`
	Chapter        int    `json:"chapter" validate:"min=1,max=10"`
}

// Generator is the external text-generation service.
type Generator interface {
	GenerateOutline(ctx context.Context, params *StoryParameters) (string, error)
	GenerateChapter(ctx context.Context, req *ChapterRequest) (string, error)
}

// ParametersFrom builds the outline request from the current session.
func ParametersFrom(st *session.State) *StoryParameters {
	return &StoryParameters{
		Genre:          strings.TrimSpace(st.Genre),
		MainCharacters: st.Characters.Joined(),
		PlotElements:   st.Plots.Joined(),
		NumChapters:    st.Settings.NumChapters,
		WritingStyle:   st.Settings.WritingStyle,
		StoryTone:      st.Settings.StoryTone,
		Complexity:     st.Settings.Complexity,
		Language:       st.Settings.EffectiveLanguage(),
	}
}

// Validate checks required fields and ranges.
func (p *StoryParameters) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

// Validate checks required fields and ranges.
func (r *ChapterRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

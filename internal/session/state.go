// Package session holds the per-user application state of the story
// workflow. State is a plain serializable record; stores persist it between
// requests.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by stores for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrEntryNotFound is returned when a character or plot id is unknown.
	ErrEntryNotFound = errors.New("entry not found")
)

// Writing styles offered on the form.
var WritingStyles = []string{"Descriptive", "Minimalist", "Poetic", "Dramatic", "Humorous"}

// Story tones offered on the form.
var StoryTones = []string{"Serious", "Light-hearted", "Mysterious", "Inspirational", "Dark"}

// Languages offered on the form. OtherLanguage enables free text.
var Languages = []string{
	"English", "Spanish", "French", "German", "Chinese", "Japanese", "Korean",
	"Russian", "Italian", "Portuguese", "Hindi", "Arabic", OtherLanguage,
}

const (
	OtherLanguage = "Other"

	MinChapters   = 1
	MaxChapters   = 10
	MinComplexity = 1
	MaxComplexity = 10
)

// Entry is one character or plot element description.
type Entry struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// EntryList is an ordered list of entries with a monotonic id counter.
// Ids are never reused, even after deletion.
type EntryList struct {
	Entries []Entry `json:"entries"`
	NextID  int     `json:"next_id"`
}

func newEntryList() EntryList {
	return EntryList{Entries: []Entry{{ID: 0}}, NextID: 1}
}

// Add appends an empty entry and returns it.
func (l *EntryList) Add() Entry {
	e := Entry{ID: l.NextID}
	l.NextID++
	l.Entries = append(l.Entries, e)
	return e
}

// Delete removes the entry with id.
func (l *EntryList) Delete(id int) error {
	for i, e := range l.Entries {
		if e.ID == id {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// SetText replaces the text of the entry with id.
func (l *EntryList) SetText(id int, text string) error {
	for i := range l.Entries {
		if l.Entries[i].ID == id {
			l.Entries[i].Text = text
			return nil
		}
	}
	return ErrEntryNotFound
}

// Joined returns the non-blank texts separated by a blank line.
func (l *EntryList) Joined() string {
	texts := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		if strings.TrimSpace(e.Text) != "" {
			texts = append(texts, e.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Settings are the story parameters chosen on the form.
type Settings struct {
	WritingStyle   string `json:"writing_style"`
	StoryTone      string `json:"story_tone"`
	Complexity     int    `json:"complexity"`
	NumChapters    int    `json:"num_chapters"`
	Language       string `json:"language"`
	CustomLanguage string `json:"custom_language,omitempty"`
}

// DefaultSettings mirrors the initial form values.
func DefaultSettings() Settings {
	return Settings{
		WritingStyle: WritingStyles[0],
		StoryTone:    StoryTones[0],
		Complexity:   5,
		NumChapters:  MaxChapters,
		Language:     Languages[0],
	}
}

// EffectiveLanguage resolves the "Other" choice to the typed language.
func (s Settings) EffectiveLanguage() string {
	if s.Language == OtherLanguage {
		return strings.TrimSpace(s.CustomLanguage)
	}
	return s.Language
}

// ChapterText is one generated chapter split into heading and body.
type ChapterText struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// State is the whole workflow state of one user session.
type State struct {
	ID         string    `json:"id"`
	Genre      string    `json:"genre"`
	Characters EntryList `json:"characters"`
	Plots      EntryList `json:"plots"`
	Settings   Settings  `json:"settings"`

	StoryGenerated     bool `json:"story_generated"`
	FullStoryGenerated bool `json:"full_story_generated"`

	Outline         string        `json:"outline"`
	ModifiedOutline string        `json:"modified_outline"`
	FullStory       string        `json:"full_story"`
	Chapters        []ChapterText `json:"chapters,omitempty"`
	Document        []byte        `json:"document,omitempty"`
	DocumentPages   int           `json:"document_pages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a fresh state with a random id.
func New() *State {
	now := time.Now()
	return &State{
		ID:         uuid.NewString(),
		Characters: newEntryList(),
		Plots:      newEntryList(),
		Settings:   DefaultSettings(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// List returns the entry list for kind ("characters" or "plots").
func (s *State) List(kind string) (*EntryList, bool) {
	switch kind {
	case "characters":
		return &s.Characters, true
	case "plots":
		return &s.Plots, true
	}
	return nil, false
}

// ClearStory drops every artefact of the full-story stage.
func (s *State) ClearStory() {
	s.FullStoryGenerated = false
	s.FullStory = ""
	s.Chapters = nil
	s.Document = nil
	s.DocumentPages = 0
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"storyweaver/server/internal/document"
	"storyweaver/server/internal/engine"
	"storyweaver/server/internal/session"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a story without the web interface",
	Long: `Generate reads the story parameters from a YAML file, asks for an outline,
writes every chapter and saves the resulting PDF.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("params", "story.yaml", "YAML file with the story parameters")
	generateCmd.Flags().String("out", "", "output PDF (default: document.default_file_name from the config)")
	generateCmd.Flags().String("outline-out", "", "also write the outline to this file")
	rootCmd.AddCommand(generateCmd)
}

// storyFile is the parameter file read by generate.
type storyFile struct {
	Genre          string   `yaml:"genre"`
	Characters     []string `yaml:"characters"`
	Plots          []string `yaml:"plots"`
	WritingStyle   string   `yaml:"writing_style"`
	StoryTone      string   `yaml:"story_tone"`
	Complexity     int      `yaml:"complexity"`
	NumChapters    int      `yaml:"num_chapters"`
	Language       string   `yaml:"language"`
	CustomLanguage string   `yaml:"custom_language"`
}

func loadStoryFile(path string) (*storyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params: %w", err)
	}
	var f storyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse params: %w", err)
	}
	return &f, nil
}

// state builds a session from the file, keeping the form defaults for
// anything left out.
func (f *storyFile) state() *session.State {
	st := session.New()
	st.Genre = f.Genre

	fill := func(list *session.EntryList, texts []string) {
		for i, text := range texts {
			id := 0
			if i > 0 {
				id = list.Add().ID
			}
			_ = list.SetText(id, text)
		}
	}
	fill(&st.Characters, f.Characters)
	fill(&st.Plots, f.Plots)

	if f.WritingStyle != "" {
		st.Settings.WritingStyle = f.WritingStyle
	}
	if f.StoryTone != "" {
		st.Settings.StoryTone = f.StoryTone
	}
	if f.Complexity != 0 {
		st.Settings.Complexity = f.Complexity
	}
	if f.NumChapters != 0 {
		st.Settings.NumChapters = f.NumChapters
	}
	if f.Language != "" {
		st.Settings.Language = f.Language
		st.Settings.CustomLanguage = f.CustomLanguage
	}
	return st
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	paramsPath, _ := cmd.Flags().GetString("params")
	f, err := loadStoryFile(paramsPath)
	if err != nil {
		return err
	}
	st := f.state()
	if err := engine.ParametersFrom(st).Validate(); err != nil {
		return err
	}

	e, err := newStoryEngine(cfg, logger, nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	errOut := cmd.ErrOrStderr()

	fmt.Fprintln(errOut, "Generating outline...")
	if err := e.GenerateOutline(ctx, st); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("outline-out"); path != "" {
		if err := os.WriteFile(path, []byte(st.ModifiedOutline), 0o644); err != nil {
			return fmt.Errorf("failed to write outline: %w", err)
		}
	}

	err = e.GenerateFullStory(ctx, st, func(p engine.Progress) {
		if !p.Done && p.Error == "" {
			fmt.Fprintf(errOut, "Chapter %d/%d written\n", p.Chapter, p.Total)
		}
	})
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.Document.DefaultFileName
	}
	out = document.FileName(out)
	if err := os.WriteFile(out, st.Document, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d chapters)\n", out, len(st.Chapters))
	return nil
}

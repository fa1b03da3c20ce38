// Package main is the entry point of the storyweaver server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storyweaver/server/internal/config"
	"storyweaver/server/internal/document"
	"storyweaver/server/internal/engine"
	"storyweaver/server/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "storyweaver",
	Short: "Interactive story generation service",
	Long: `storyweaver guides a writer from a genre, characters and plot elements to
a chapter outline, lets them edit it, and then writes the full story chapter
by chapter through a text generation service. Finished stories are delivered
as PDF documents.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level")
}

// setup loads the configuration and builds the logger shared by every
// command.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newAssembler(cfg *config.Config) *document.Assembler {
	return document.NewAssembler(
		document.WithPageMargin(cfg.Document.PageMargin),
		document.WithFontFamily(cfg.Document.FontFamily),
		document.WithFontFile(cfg.Document.FontFile),
	)
}

// newStoryEngine connects the configured generation provider. archive may
// be nil.
func newStoryEngine(cfg *config.Config, logger *zap.Logger, archive engine.Archive) (*engine.StoryEngine, error) {
	if err := cfg.Credentials(); err != nil {
		return nil, err
	}
	gen, err := engine.NewGenerator(cfg.AI, logger)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if archive != nil {
		opts = append(opts, engine.WithArchive(archive))
	}
	return engine.NewStoryEngine(gen, newAssembler(cfg), opts...), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

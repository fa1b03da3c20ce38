package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storyweaver/server/internal/genres"
)

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "Print the genre catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Genres.Path
		}
		catalog, err := genres.Load(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range catalog.Names() {
			fmt.Fprintln(out, name)
			subs, _ := catalog.Subgenres(name)
			for _, sub := range subs {
				fmt.Fprintf(out, "  - %s\n", sub)
			}
		}
		return nil
	},
}

func init() {
	genresCmd.Flags().String("file", "", "catalog file (default: genres.path from the config)")
	rootCmd.AddCommand(genresCmd)
}

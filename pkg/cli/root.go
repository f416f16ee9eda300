// Package cli implements the tubenote command line.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tubenote",
	Short: "Fetch, normalize and cache video transcripts",
	Long: `tubenote retrieves a video's transcript, normalizes it into plain text
and a timestamped form, and caches caption downloads in a document store.

Settings come from tubenote.yml (or --config), a .env file and the
environment (TUBENOTE_*, MONGO_URI, DATABASE_URL, SUPABASE_*).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default tubenote.yml if present)")

	rootCmd.AddCommand(serveCmd, fetchCmd, prefetchCmd, replicateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "rapport",
	Short: "Emotional state, relationship and memory engine for chat agents",
	Long: "Rapport scores chat messages, tracks each user's mood and relationship with the agent, " +
		"remembers past exchanges, and shapes replies to match.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (dotenv format, default ~/.rapport/rapport.env)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides RAPPORT_DATABASE_PATH)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(relationshipCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(resetCmd)
}

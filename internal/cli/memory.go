package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	memoryUser  string
	memoryLimit int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect semantic memory",
}

var memorySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find a user's past exchanges most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory index statistics",
	RunE:  runMemoryStats,
}

func init() {
	memorySearchCmd.Flags().StringVarP(&memoryUser, "user", "u", "", "User id to search")
	memorySearchCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 5, "Maximum number of results")
	memorySearchCmd.MarkFlagRequired("user")
	memoryStatsCmd.Flags().StringVarP(&memoryUser, "user", "u", "", "Count only this user's memories")

	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	results := a.memory.Query(ctx, memoryUser, strings.Join(args, " "), memoryLimit)
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	for i, r := range results {
		when := time.UnixMilli(r.CreatedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(out, "%d. [%.3f] #%d %s\n", i+1, r.Similarity, r.Seq, when)
		fmt.Fprintf(out, "   user: %s\n", r.UserMessage)
		fmt.Fprintf(out, "   bot:  %s\n\n", r.AgentResponse)
	}
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	s := a.memory.Stats(cmd.Context(), memoryUser)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "model:      %s\n", s.Model)
	fmt.Fprintf(out, "index size: %d\n", s.IndexSize)
	fmt.Fprintf(out, "stored:     %d\n", s.UserCount)
	return nil
}

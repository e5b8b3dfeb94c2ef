package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/rapport/internal/transcript"
)

var (
	importUser    string
	importWorkers int
)

var importCmd = &cobra.Command{
	Use:   "import [file.jsonl]",
	Short: "Backfill memory from a JSONL chat log",
	Long: "Read a JSONL chat log ({\"role\":\"user\"|\"assistant\",\"content\":...} per line), " +
		"pair user messages with the replies that followed, and store each exchange in memory.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "User id the log belongs to")
	importCmd.Flags().IntVarP(&importWorkers, "workers", "w", 4, "Concurrent embedding requests")
	importCmd.MarkFlagRequired("user")
}

func runImport(cmd *cobra.Command, args []string) error {
	entries, err := transcript.ParseFile(args[0])
	if err != nil {
		return err
	}
	exchanges := transcript.Pair(entries)
	if len(exchanges) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No exchanges found.")
		return nil
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	n, err := transcript.Import(cmd.Context(), a.memory, importUser, exchanges, importWorkers)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d exchanges (%d user messages).\n",
		n, len(exchanges), transcript.CountUserMessages(entries))
	return err
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/rapport/internal/client"
)

var (
	sendUser string
	sendURL  string
)

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send a message to a running server as a user",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendUser, "user", "u", "", "User id to send as")
	sendCmd.Flags().StringVar(&sendURL, "url", "", "Server URL (default $RAPPORT_URL or http://127.0.0.1:37778)")
	sendCmd.MarkFlagRequired("user")
}

func runSend(cmd *cobra.Command, args []string) error {
	c := client.New(sendURL)
	if !c.Healthy(cmd.Context()) {
		return fmt.Errorf("no rapport server at %s (start one with `rapport serve`)", c.URL())
	}
	out, err := c.Send(cmd.Context(), sendUser, strings.Join(args, " "))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.Reply)
	fmt.Fprintln(w)
	if out.Throttled {
		fmt.Fprintln(w, "  (throttled)")
		return nil
	}
	fmt.Fprintf(w, "  mood %d (%s), %s\n", out.Emotion.MoodScore, out.Mode, out.Emotion.Category)
	if out.Emotion.ShouldDefend {
		fmt.Fprintf(w, "  defense: %s (severity %d)\n", out.Emotion.DefenseLevel, out.Emotion.Severity)
	}
	r := out.Relationship
	fmt.Fprintf(w, "  %s %s: %d points, trust %d\n", r.TierEmoji, r.TierName, r.Points, r.Trust)
	if len(out.Memories) > 0 {
		fmt.Fprintf(w, "  recalled %d memories\n", len(out.Memories))
	}
	return nil
}

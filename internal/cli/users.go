package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	usersJSON  bool
	resetForce bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List known users with their relationship tier",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

var resetCmd = &cobra.Command{
	Use:   "reset [user]",
	Short: "Forget a user's mood and relationship (memories and facts are kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func init() {
	usersCmd.Flags().BoolVar(&usersJSON, "json", false, "Print as JSON")
	resetCmd.Flags().BoolVar(&resetForce, "yes", false, "Do not ask for confirmation")
}

func runUsers(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.engine.Users(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if usersJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tTIER\tPOINTS\tTRUST\tINTERACTIONS")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s %s\t%d\t%d\t%d\n", u.UserID, u.TierEmoji, u.TierName, u.Points, u.Trust, u.Interactions)
	}
	return tw.Flush()
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetForce {
		return fmt.Errorf("refusing to reset %s without --yes", args[0])
	}
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Reset(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %s.\n", args[0])
	return nil
}

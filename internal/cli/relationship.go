package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/rapport/internal/client"
	"github.com/lazypower/rapport/internal/emotion"
	"github.com/lazypower/rapport/internal/relationship"
)

var (
	relationshipJSON bool
	relationshipURL  string
)

var relationshipCmd = &cobra.Command{
	Use:   "relationship [user]",
	Short: "Show a user's relationship and emotional state",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelationship,
}

func init() {
	relationshipCmd.Flags().BoolVar(&relationshipJSON, "json", false, "Print as JSON")
	relationshipCmd.Flags().StringVar(&relationshipURL, "url", "", "Ask a running server instead of opening the database")
}

func runRelationship(cmd *cobra.Command, args []string) error {
	var (
		rel relationship.Summary
		emo emotion.State
		err error
	)
	if relationshipURL != "" {
		rel, emo, err = remoteRelationship(cmd.Context(), relationshipURL, args[0])
	} else {
		rel, emo, err = localRelationship(cmd.Context(), args[0])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if relationshipJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"relationship": rel, "emotion": emo})
	}

	fmt.Fprintf(out, "## %s %s\n\n", rel.TierEmoji, rel.TierName)
	fmt.Fprintf(out, "%s\n\n", rel.TierMessage)
	fmt.Fprintf(out, "points:        %d\n", rel.Points)
	if rel.NextTierName != "" {
		fmt.Fprintf(out, "next tier:     %s (%d%%)\n", rel.NextTierName, rel.ProgressPercent)
	}
	fmt.Fprintf(out, "trust:         %d\n", rel.Trust)
	fmt.Fprintf(out, "compatibility: %d\n", rel.Compatibility)
	fmt.Fprintf(out, "interactions:  %d\n", rel.Interactions)
	fmt.Fprintf(out, "mood:          %d\n", emo.MoodScore)
	fmt.Fprintf(out, "trust score:   %.1f\n", emo.TrustScore)
	if emo.AttackCount > 0 {
		fmt.Fprintf(out, "attacks:       %d\n", emo.AttackCount)
	}
	return nil
}

func remoteRelationship(ctx context.Context, serverURL, userID string) (relationship.Summary, emotion.State, error) {
	c := client.New(serverURL)
	rel, err := c.Relationship(ctx, userID)
	if err != nil {
		return rel, emotion.State{}, err
	}
	emo, err := c.EmotionalState(ctx, userID)
	return rel, emo, err
}

func localRelationship(ctx context.Context, userID string) (relationship.Summary, emotion.State, error) {
	a, err := newApp(ctx)
	if err != nil {
		return relationship.Summary{}, emotion.State{}, err
	}
	defer a.close()

	rel, err := a.engine.Relationship(ctx, userID)
	if err != nil {
		return rel, emotion.State{}, err
	}
	emo, err := a.engine.EmotionalState(ctx, userID)
	return rel, emo, err
}

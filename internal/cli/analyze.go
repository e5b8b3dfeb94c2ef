package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/rapport/internal/config"
	"github.com/lazypower/rapport/internal/defense"
	"github.com/lazypower/rapport/internal/engine"
	"github.com/lazypower/rapport/internal/sentiment"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Score a message without touching any user state",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the reading as JSON")
}

// analysis is the stateless view of one message.
type analysis struct {
	sentiment.Reading
	Toxicity int      `json:"toxicity_level"`
	Severity int      `json:"severity"`
	Insults  []string `json:"insults,omitempty"`
}

func analyzeText(cfg config.Config, text string) analysis {
	opts := engine.OptionsFromConfig(cfg)
	r := sentiment.New(opts.Sentiment).Analyze(text)
	severity, insults := defense.New(opts.Defense).Severity(text)

	a := analysis{Reading: r, Severity: severity, Insults: insults}
	if r.Score <= opts.Emotion.ToxicityThreshold {
		a.Toxicity = -r.Score
	}
	return a
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a := analyzeText(cfg, strings.Join(args, " "))

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	fmt.Fprintf(out, "category:  %s\n", a.Category)
	fmt.Fprintf(out, "raw score: %d\n", a.Score)
	if a.GenAlpha {
		fmt.Fprintln(out, "gen alpha: yes")
	}
	if a.Sarcasm {
		fmt.Fprintln(out, "sarcasm:   yes")
	}
	if a.Toxicity > 0 {
		fmt.Fprintf(out, "toxicity:  %d\n", a.Toxicity)
	}
	if a.Severity > 0 {
		fmt.Fprintf(out, "insults:   %s (severity %d)\n", strings.Join(a.Insults, ", "), a.Severity)
	}
	return nil
}

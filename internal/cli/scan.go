package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trishield/internal/model"
	"github.com/ppiankov/trishield/internal/pipeline"
)

// exitBlocked is returned by scan when the verdict would block navigation
const exitBlocked = 2

var (
	scanJSON    bool
	scanExplain bool
	scanTimeout time.Duration
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Score a single URL",
	Long: `Scan runs the full analysis for one URL and records the verdict in history.

The command exits with status 2 when the verdict is risk and block_risky is
enabled, so it can gate scripts.

Example:
  trishield scan http://paypa1.com/login
  trishield scan https://example.com --json
  trishield scan http://phishing-site.net --explain`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the verdict as JSON")
	scanCmd.Flags().BoolVar(&scanExplain, "explain", false, "ask the configured LLM to explain the verdict")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", time.Minute, "overall timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "Reputation: %v\n", cfg.Settings.HasAPIKey())
		fmt.Fprintln(os.Stderr)
	}

	p := pipeline.NewFromConfig(cfg, newLogger())
	v, err := p.AnalyzeURL(ctx, args[0])
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var explanation string
	if scanExplain {
		if !p.CanExplain() {
			fmt.Fprintf(os.Stderr, "No LLM provider configured (set llm.provider in the config file)\n")
		} else if explanation, err = p.Explain(ctx, v); err != nil {
			fmt.Fprintf(os.Stderr, "Explanation unavailable: %v\n", err)
		}
	}

	settings := p.Settings()
	if scanJSON {
		if err := writeVerdictJSON(os.Stdout, v, settings, explanation); err != nil {
			return err
		}
	} else {
		printVerdict(os.Stdout, v, settings)
		if explanation != "" {
			fmt.Printf("\n%s\n", explanation)
		}
	}

	if model.ShouldBlock(v, settings) {
		return &ExitError{Code: exitBlocked}
	}
	return nil
}

func writeVerdictJSON(w io.Writer, v model.Verdict, s model.Settings, explanation string) error {
	out := struct {
		Verdict     model.Verdict `json:"verdict"`
		Block       bool          `json:"block"`
		Announce    bool          `json:"announce"`
		Explanation string        `json:"explanation,omitempty"`
	}{
		Verdict:     v,
		Block:       model.ShouldBlock(v, s),
		Announce:    model.ShouldAnnounce(v, s),
		Explanation: explanation,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printVerdict(w io.Writer, v model.Verdict, s model.Settings) {
	mark := "✓"
	if v.IsRisk() {
		mark = "✗"
	}

	fmt.Fprintf(w, "%s %s\n", mark, v.URL)
	fmt.Fprintf(w, "  Verdict: %s (%s)\n", v.Verdict, v.Tier)
	fmt.Fprintf(w, "  Score:   %.2f\n", v.Score)
	fmt.Fprintf(w, "  Source:  %s\n", v.Source)
	if v.Counts != nil {
		fmt.Fprintf(w, "  Engines: %d malicious, %d suspicious, %d harmless, %d undetected\n",
			v.Counts.Malicious, v.Counts.Suspicious, v.Counts.Harmless, v.Counts.Undetected)
	}
	if len(v.Reasons) > 0 {
		fmt.Fprintf(w, "  Reasons:\n")
		for _, r := range v.Reasons {
			fmt.Fprintf(w, "    - %s\n", r)
		}
	}
	if model.ShouldBlock(v, s) {
		fmt.Fprintf(w, "  Navigation would be blocked\n")
	}
}

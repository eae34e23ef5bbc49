package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trishield/internal/history"
)

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the verdict history log",
	Long: `The history log keeps the most recent single-URL verdicts, newest first.
Batch results are not recorded.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent verdicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := historyStore()
		if err != nil {
			return err
		}

		entries, err := store.List(historyLimit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}

		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"history": entries})
		}

		if len(entries) == 0 {
			fmt.Println("No history yet")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-5s  %.2f  %s\n", e.Time().Format("2006-01-02 15:04:05"), e.Verdict, e.Score, e.URL)
		}
		return nil
	},
}

var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite legacy history entries in the flat format",
	Long: `Migrate converts entries written by older versions, which nested the whole
verdict object, into flat {url, verdict, score, at} entries. Running it again
is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := historyStore()
		if err != nil {
			return err
		}

		changed, err := store.Migrate()
		if err != nil {
			return fmt.Errorf("migrate history: %w", err)
		}
		if changed {
			fmt.Println("✓ History migrated")
		} else {
			fmt.Println("✓ History already up to date")
		}
		return nil
	},
}

func historyStore() (*history.FileStore, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, err
	}
	if cfg.History.Path == "" {
		return nil, fmt.Errorf("history.path is not configured")
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "History file: %s\n", cfg.History.Path)
	}
	return history.NewFileStore(cfg.History.Path, cfg.History.MaxEntries, newLogger()), nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show (0 for all)")
	historyListCmd.Flags().BoolVar(&historyJSON, "json", false, "print entries as JSON")
}

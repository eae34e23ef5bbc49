package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/trishield/internal/extract"
	"github.com/ppiankov/trishield/internal/model"
	"github.com/ppiankov/trishield/internal/pipeline"
	"github.com/ppiankov/trishield/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchJSON    bool
	htmlFile     string
	baseURL      string
	externalOnly bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Score many URLs in parallel",
	Long: `Batch analyzes a list of URLs concurrently and reports the noteworthy ones
(score at least 0.4). Each distinct URL is analyzed once.

URLs come either from a file (one per line, # comments allowed) or from the
links of a saved HTML page.

Example:
  trishield batch urls.txt
  trishield batch --html page.html --base https://mail.example.com/inbox
  trishield batch --html page.html --base https://example.com --external-only --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print results as JSON")
	batchCmd.Flags().StringVar(&htmlFile, "html", "", "read links from an HTML page instead of a URL list")
	batchCmd.Flags().StringVar(&baseURL, "base", "", "page URL used to resolve relative links (with --html)")
	batchCmd.Flags().BoolVar(&externalOnly, "external-only", false, "skip links to the page's own host (with --html)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	urls, err := batchInput(args)
	if err != nil {
		return err
	}

	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d URLs (%d unique)\n", len(urls), len(worker.Dedup(urls)))
		fmt.Fprintf(os.Stderr, "Workers: %d\n", cfg.Concurrency.Workers)
		fmt.Fprintln(os.Stderr)
	}

	p := pipeline.NewFromConfig(cfg, newLogger())
	results, err := p.AnalyzeLinks(ctx, urls)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	if batchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]model.Verdict{"results": results})
	}

	if len(results) == 0 {
		fmt.Println("✓ No noteworthy links")
		return nil
	}
	settings := p.Settings()
	for _, v := range results {
		printVerdict(os.Stdout, v, settings)
	}
	fmt.Fprintf(os.Stderr, "\n%d of %d URLs are noteworthy\n", len(results), len(worker.Dedup(urls)))
	return nil
}

// batchInput collects URLs from the list file or the HTML page
func batchInput(args []string) ([]string, error) {
	switch {
	case htmlFile != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either a URL file or --html, not both")
	case htmlFile != "":
		f, err := os.Open(htmlFile)
		if err != nil {
			return nil, fmt.Errorf("open html: %w", err)
		}
		defer func() { _ = f.Close() }()

		ex := extract.NewLinkExtractor()
		ex.ExternalOnly = externalOnly
		return ex.Extract(f, baseURL)
	case len(args) == 1:
		return worker.ReadURLsFromFile(args[0])
	default:
		return nil, fmt.Errorf("no input: pass a URL file or --html")
	}
}

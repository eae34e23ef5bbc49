package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/trishield/internal/model"
)

// Analyzer produces a verdict for one URL
type Analyzer interface {
	AnalyzeURL(ctx context.Context, url string) (model.Verdict, error)
}

// LinkJob analyzes one URL of a batch
type LinkJob struct {
	Index    int
	URL      string
	Analyzer Analyzer
}

// Execute runs the analysis
func (j *LinkJob) Execute(ctx context.Context) Result {
	verdict, err := j.Analyzer.AnalyzeURL(ctx, j.URL)
	return &LinkResult{
		Index:   j.Index,
		URL:     j.URL,
		Verdict: verdict,
		Error:   err,
	}
}

// LinkResult is the outcome of a LinkJob
type LinkResult struct {
	Index   int
	URL     string
	Verdict model.Verdict
	Error   error
}

// GetError returns the analysis error, if any
func (r *LinkResult) GetError() error {
	return r.Error
}

// BatchProcessor fans a list of URLs out over a worker pool
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessURLs analyzes each unique URL exactly once and returns the results
// in first-occurrence order. It returns only after every job has finished.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*LinkResult {
	unique := Dedup(urls)
	if len(unique) == 0 {
		return []*LinkResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, u := range unique {
			pool.Submit(&LinkJob{Index: i, URL: u, Analyzer: b.analyzer})
		}
	}()

	results := pool.Wait()

	out := make([]*LinkResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.(*LinkResult))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	return out
}

// ProcessFile reads URLs from a file and analyzes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*LinkResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// Dedup trims URLs and drops empties and repeats, keeping first-occurrence order
func Dedup(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// ReadURLsFromFile reads one URL per line; see ReadURLs
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadURLs(file)
}

// ReadURLs reads one URL per line, skipping blank lines and # comments.
// Duplicates are dropped.
func ReadURLs(r io.Reader) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return Dedup(lines), nil
}

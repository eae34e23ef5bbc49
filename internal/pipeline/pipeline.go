// Package pipeline exposes the two analysis entry points: a single URL and a
// batch of page links.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ppiankov/trishield/internal/blacklist"
	"github.com/ppiankov/trishield/internal/fusion"
	"github.com/ppiankov/trishield/internal/history"
	"github.com/ppiankov/trishield/internal/llm"
	"github.com/ppiankov/trishield/internal/model"
	"github.com/ppiankov/trishield/internal/reputation"
	"github.com/ppiankov/trishield/internal/worker"
)

// NoteworthyFloor is the lowest score a batch result must reach to be reported,
// unless its tier was raised by a typosquat match
const NoteworthyFloor = model.SuspiciousFloor

// ErrDisabled is returned while analysis is switched off in settings
var ErrDisabled = errors.New("analysis is disabled")

// ParseError means the target cannot be analyzed at all
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot analyze %q: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SettingsFunc returns the settings in effect for the next analysis
type SettingsFunc func() model.Settings

// StaticSettings always returns s
func StaticSettings(s model.Settings) SettingsFunc {
	return func() model.Settings { return s }
}

// Pipeline orchestrates analysis, history and explanations
type Pipeline struct {
	engine    *fusion.Engine
	store     history.Store
	explainer *llm.Explainer
	settings  SettingsFunc
	workers   int
	logger    *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStore records single-URL verdicts in store
func WithStore(store history.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithExplainer enables Explain
func WithExplainer(e *llm.Explainer) Option {
	return func(p *Pipeline) { p.explainer = e }
}

// WithWorkers bounds batch concurrency
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline around engine
func New(engine *fusion.Engine, settings SettingsFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:   engine,
		settings: settings,
		workers:  8,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig wires the full stack described by cfg. An LLM provider that
// fails to initialize only disables explanations.
func NewFromConfig(cfg *model.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	engine := fusion.NewEngine(
		fusion.WithReputation(reputation.NewFromConfig(cfg, logger)),
		fusion.WithChecker(blacklist.NewChecker(cfg.Lists.Blacklist, cfg.Lists.Brands)),
		fusion.WithLogger(logger),
	)

	var store history.Store
	if cfg.History.Path != "" {
		store = history.NewFileStore(cfg.History.Path, cfg.History.MaxEntries, logger)
	} else {
		store = history.NewMemoryStore(cfg.History.MaxEntries)
	}

	explainer, err := llm.NewExplainer(cfg.LLM)
	if err != nil {
		logger.Warn("LLM explainer disabled", "error", err)
	}

	settings := cfg.Settings.Normalize()
	return New(engine, StaticSettings(settings),
		WithStore(store),
		WithExplainer(explainer),
		WithWorkers(cfg.Concurrency.Workers),
		WithLogger(logger),
	)
}

// Settings returns the settings currently in effect
func (p *Pipeline) Settings() model.Settings {
	return p.settings()
}

// Store returns the history store, which may be nil
func (p *Pipeline) Store() history.Store {
	return p.store
}

// AnalyzeURL produces the verdict for one URL and records it in history.
// The only errors are ErrDisabled and *ParseError.
func (p *Pipeline) AnalyzeURL(ctx context.Context, rawURL string) (model.Verdict, error) {
	s := p.settings()
	if !s.Enabled {
		return model.Verdict{}, ErrDisabled
	}

	v, err := p.analyze(ctx, rawURL, s)
	if err != nil {
		return model.Verdict{}, err
	}

	if p.store != nil {
		if err := p.store.Append(model.EntryFromVerdict(v)); err != nil {
			p.logger.Warn("failed to record history", "url", v.URL, "error", err)
		}
	}
	return v, nil
}

// AnalyzeLinks analyzes each unique URL once, concurrently, and returns the
// noteworthy verdicts in first-occurrence order.
// Unanalyzable links are skipped. Batch verdicts are not written to history.
func (p *Pipeline) AnalyzeLinks(ctx context.Context, urls []string) ([]model.Verdict, error) {
	s := p.settings()
	if !s.Enabled {
		return nil, ErrDisabled
	}

	batch := worker.NewBatchProcessor(linkAnalyzer{p: p, settings: s}, p.workers)
	results := batch.ProcessURLs(ctx, urls)

	verdicts := make([]model.Verdict, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			p.logger.Debug("skipping link", "url", r.URL, "error", r.Error)
			continue
		}
		if Noteworthy(r.Verdict) {
			verdicts = append(verdicts, r.Verdict)
		}
	}
	return verdicts, nil
}

// Noteworthy reports whether a page scan should surface v: a score of at
// least NoteworthyFloor, or any tier above safe
func Noteworthy(v model.Verdict) bool {
	return v.Score >= NoteworthyFloor || v.Tier != model.TierSafe
}

// Explain asks the configured LLM to describe v. It never alters v.
func (p *Pipeline) Explain(ctx context.Context, v model.Verdict) (string, error) {
	return p.explainer.Explain(ctx, v)
}

// CanExplain reports whether an LLM explainer is configured
func (p *Pipeline) CanExplain() bool {
	return p.explainer.IsEnabled()
}

func (p *Pipeline) analyze(ctx context.Context, rawURL string, s model.Settings) (model.Verdict, error) {
	target, err := ValidateTarget(rawURL)
	if err != nil {
		return model.Verdict{}, err
	}
	return p.engine.Fuse(ctx, target, s), nil
}

// ValidateTarget trims rawURL and rejects input that cannot be analyzed at
// all. Odd but parseable URLs pass; the heuristics judge them.
func ValidateTarget(rawURL string) (string, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return "", &ParseError{URL: rawURL, Err: errors.New("empty URL")}
	}
	if _, err := url.Parse(target); err != nil {
		return "", &ParseError{URL: rawURL, Err: err}
	}
	return target, nil
}

// linkAnalyzer adapts the pipeline to worker.Analyzer for batch runs
type linkAnalyzer struct {
	p        *Pipeline
	settings model.Settings
}

func (a linkAnalyzer) AnalyzeURL(ctx context.Context, rawURL string) (model.Verdict, error) {
	return a.p.analyze(ctx, rawURL, a.settings)
}

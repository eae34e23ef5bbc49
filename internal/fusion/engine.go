// Package fusion combines the local and remote risk signals into the final
// verdict for a URL. Engine.Fuse is the only place verdicts are built.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/trishield/internal/blacklist"
	"github.com/ppiankov/trishield/internal/heuristic"
	"github.com/ppiankov/trishield/internal/model"
	"github.com/ppiankov/trishield/internal/reputation"
)

const maxErrorReason = 120

// Analyzer scores a URL locally
type Analyzer interface {
	Analyze(rawURL string) model.HeuristicResult
}

// Engine fuses signals. Safe for concurrent use.
type Engine struct {
	reputation reputation.Querier
	checker    *blacklist.Checker
	analyzer   Analyzer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithReputation enables the remote signal. It still only runs when the
// settings carry an API key.
func WithReputation(q reputation.Querier) Option {
	return func(e *Engine) { e.reputation = q }
}

// WithChecker replaces the default blacklist/brand checker
func WithChecker(c *blacklist.Checker) Option {
	return func(e *Engine) {
		if c != nil {
			e.checker = c
		}
	}
}

// WithAnalyzer replaces the default heuristic analyzer
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the verdict timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine with the built-in lists and rules
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		checker:  blacklist.NewChecker(nil, nil),
		analyzer: heuristic.NewAnalyzer(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse produces the verdict for rawURL under s. It never fails: a broken
// reputation lookup only adds a diagnostic reason.
//
// Order: allowlist, local blacklist, heuristics alongside reputation, weighted
// fusion, threshold. A typosquat match adds a reason and raises the tier to at
// least suspicious; it never changes the score or the label.
func (e *Engine) Fuse(ctx context.Context, rawURL string, s model.Settings) model.Verdict {
	at := e.now()
	host := heuristic.Extract(rawURL).Host

	if Allowlisted(host, s.Allowlist) {
		return model.Verdict{
			URL:     rawURL,
			Score:   0,
			Verdict: model.LabelSafe,
			Tier:    model.TierSafe,
			Reasons: []string{"In user allowlist"},
			Source:  model.SourceAllowlist,
			At:      at,
		}
	}

	lists := e.checker.Check(host)
	if lists.Blacklisted {
		heur := e.analyzer.Analyze(rawURL)
		return model.Verdict{
			URL:     rawURL,
			Score:   1,
			Verdict: model.LabelRisk,
			Tier:    model.TierDanger,
			Reasons: append([]string{"Domain is on a local blacklist"}, heur.Reasons...),
			Source:  model.SourceBlacklist,
			At:      at,
		}
	}

	var (
		heur model.HeuristicResult
		rep  *model.ReputationResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		heur = e.analyzer.Analyze(rawURL)
		return nil
	})
	if s.HasAPIKey() && e.reputation != nil {
		g.Go(func() error {
			res, err := e.reputation.Query(gctx, rawURL, s.VTAPIKey, s.VTTimeout())
			if err != nil {
				return err
			}
			rep = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("reputation lookup failed", "url", rawURL, "error", err)
		rep = &model.ReputationResult{
			Reasons: []string{"VT error: " + truncate(err.Error(), maxErrorReason)},
		}
	}

	repScore := 0.0
	source := model.SourceHeuristics
	var counts *model.Counts
	if rep.HasScore() {
		repScore = *rep.Score
		source = model.SourceVTHeuristics
		counts = rep.Counts
	}

	score := model.Clamp01(repScore*s.VTWeight + heur.Score*s.HeurWeight)

	reasons := make([]string, 0, len(heur.Reasons)+3)
	reasons = append(reasons, heur.Reasons...)
	if rep != nil {
		reasons = append(reasons, rep.Reasons...)
	}

	tier := model.TierForScore(score)
	if sq := lists.Typosquat; sq != nil {
		if tier == model.TierSafe {
			tier = model.TierSuspicious
		}
		reasons = append(reasons, fmt.Sprintf("Possible typosquat of %s (edit distance %d)", sq.MatchedBrand, sq.Distance))
	}

	label := model.LabelSafe
	if score >= s.RiskThreshold {
		label = model.LabelRisk
	}

	return model.Verdict{
		URL:     rawURL,
		Score:   score,
		Verdict: label,
		Tier:    tier,
		Reasons: reasons,
		Source:  source,
		Counts:  counts,
		At:      at,
	}
}

// Allowlisted reports whether host ends with one of the allowlist suffixes
func Allowlisted(host string, allowlist []string) bool {
	if host == "" {
		return false
	}
	host = strings.ToLower(host)
	for _, suffix := range allowlist {
		suffix = model.NormalizeDomain(suffix)
		if suffix != "" && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

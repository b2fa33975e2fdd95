// Package runner executes eval suites: every case is run against every
// target provider with bounded concurrency, per-case timeouts, response
// caching and request pacing, then graded by its assertions.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/prompteval/prompteval/internal/logger"
	"github.com/prompteval/prompteval/pkg/assert"
	"github.com/prompteval/prompteval/pkg/cache"
	"github.com/prompteval/prompteval/pkg/mock"
	"github.com/prompteval/prompteval/pkg/prompt"
	"github.com/prompteval/prompteval/pkg/provider"
	"github.com/prompteval/prompteval/pkg/result"
	"github.com/prompteval/prompteval/pkg/suite"
	"github.com/prompteval/prompteval/pkg/trace"
)

// MaxToolLoopIterations is the maximum number of tool-call round-trips
// per case before the runner stops to prevent infinite loops.
const MaxToolLoopIterations = 20

// Target is one provider the suite runs against, with its request
// parameters resolved from configuration.
type Target struct {
	ID          string
	Provider    provider.Provider
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Config controls runner behavior.
type Config struct {
	// MaxConcurrency bounds the number of case/provider pairs in flight.
	MaxConcurrency int

	// Delay is waited before every provider request. Cache hits skip it.
	Delay time.Duration

	// Timeout is the per-case deadline; cases may override it.
	Timeout time.Duration
}

// Runner orchestrates suite execution across the case/provider matrix.
type Runner struct {
	cfg   Config
	cache cache.Cache
	deps  assert.Deps
	log   zerolog.Logger
}

// New creates a Runner. A nil cache disables response caching.
func New(cfg Config, c cache.Cache, deps assert.Deps) *Runner {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if c == nil {
		c = cache.NewNoop()
	}
	return &Runner{
		cfg:   cfg,
		cache: c,
		deps:  deps,
		log:   logger.Get().With().Str("component", "runner").Logger(),
	}
}

// ProgressFunc is called after each case/provider pair completes.
// Completed counts finished pairs, total is the matrix size.
type ProgressFunc func(completed, total int, caseName, providerID string, elapsed time.Duration, err error)

// unit is one cell of the case/provider matrix.
type unit struct {
	caseIdx   int
	targetIdx int
}

// Run executes every case in the suite against every target. Results are
// ordered case-major, target-minor, matching the input order regardless of
// completion order. Case failures are recorded in the results, not
// returned; the error return covers setup problems and context
// cancellation only.
func (r *Runner) Run(ctx context.Context, s *suite.EvalSuite, pv *prompt.PromptVariant, targets []Target, progress ProgressFunc) (*result.RunSummary, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets to run suite %q against", s.Name)
	}

	summary := &result.RunSummary{
		RunID:     result.NewRunID(),
		SuiteName: s.Name,
		StartTime: time.Now(),
		Results:   make([]result.CaseResult, len(s.Cases)*len(targets)),
	}

	units := make([]unit, 0, len(summary.Results))
	for i := range s.Cases {
		for j := range targets {
			units = append(units, unit{caseIdx: i, targetIdx: j})
		}
	}

	r.log.Info().
		Str("suite", s.Name).
		Int("cases", len(s.Cases)).
		Int("targets", len(targets)).
		Int("max_concurrency", r.cfg.MaxConcurrency).
		Msg("starting run")

	var mu sync.Mutex
	var completed int

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)
	for i, u := range units {
		idx, u := i, u
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cr := r.runCase(ctx, s.Cases[u.caseIdx], pv, targets[u.targetIdx])

			mu.Lock()
			summary.Results[idx] = cr
			completed++
			current := completed
			mu.Unlock()

			if progress != nil {
				var caseErr error
				if cr.Error != "" {
					caseErr = fmt.Errorf("%s", cr.Error)
				}
				progress(current, len(units), cr.CaseName, cr.ProviderID, time.Since(summary.StartTime), caseErr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	summary.Recompute()

	r.log.Info().
		Str("suite", s.Name).
		Dur("duration", summary.Duration).
		Int("passed", summary.Stats.PassedCases).
		Int("failed", summary.Stats.FailedCases).
		Int("errored", summary.Stats.ErroredCases).
		Int("cache_hits", summary.Stats.CacheHits).
		Msg("run complete")

	return summary, nil
}

// runCase executes one case against one target through the full tool loop
// and grades the final response.
func (r *Runner) runCase(ctx context.Context, c suite.EvalCase, pv *prompt.PromptVariant, target Target) result.CaseResult {
	start := time.Now()
	cr := result.CaseResult{
		CaseID:     c.ID,
		CaseName:   c.Name,
		ProviderID: target.ID,
		Model:      target.Model,
		Prompt:     pv.Name,
		Status:     assert.StatusError,
	}

	timeout := r.cfg.Timeout
	if c.Timeout > 0 {
		timeout = c.Timeout
	}
	caseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	registry := mock.NewRegistry(c.Mocks)

	rendered, err := pv.Interpolate(c.Vars)
	if err != nil {
		cr.Error = fmt.Sprintf("interpolating prompt: %v", err)
		cr.Duration = time.Since(start)
		return cr
	}

	tools := make([]provider.Tool, len(rendered.Tools))
	for i, t := range rendered.Tools {
		tools[i] = provider.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}
	}

	tr := trace.New(target.ID)

	messages := []provider.Message{
		{Role: "user", Content: rendered.User},
	}
	tr.AddMessage("user", rendered.User)

	for iteration := 0; iteration < MaxToolLoopIterations; iteration++ {
		req := &provider.Request{
			Model:       target.Model,
			System:      rendered.System,
			Messages:    messages,
			Tools:       tools,
			Temperature: target.Temperature,
			TopP:        target.TopP,
			MaxTokens:   target.MaxTokens,
		}

		resp, err := r.complete(caseCtx, target, req, tr)
		if err != nil {
			cr.Error = fmt.Sprintf("provider error: %v", err)
			break
		}

		tr.AddUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		tr.AddCost(provider.EstimateCost(target.Model, resp.Usage))

		if len(resp.ToolCalls) == 0 {
			tr.AddMessage("assistant", resp.Content)
			cr.FinalResponse = resp.Content
			break
		}

		tr.AddMessage("assistant", resp.Content)
		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			tcStart := time.Now()
			content, mockErr := registry.Resolve(caseCtx, tc.Name, tc.Parameters)
			tcDuration := time.Since(tcStart)

			tcTrace := trace.ToolCallTrace{
				ToolName:   tc.Name,
				Parameters: tc.Parameters,
				Response:   content,
				StartTime:  tcStart,
				EndTime:    time.Now(),
				Duration:   tcDuration,
			}
			if mockErr != nil {
				tcTrace.Error = mockErr.Error()
			}
			tr.AddToolCall(tcTrace)

			toolContent := content
			if mockErr != nil {
				toolContent = fmt.Sprintf("Error: %v", mockErr)
			}
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    toolContent,
				ToolCallID: tc.ID,
			})
			tr.AddMessage("tool", toolContent)
		}
	}

	tr.Finish()
	cr.Duration = time.Since(start)
	usage := tr.GetUsage()
	cr.InputTokens = usage.InputTokens
	cr.OutputTokens = usage.OutputTokens
	cr.Cost = tr.GetCost()
	cr.CacheHit = tr.CacheHit

	if cr.Error != "" {
		r.log.Warn().
			Str("case", c.Name).
			Str("provider", target.ID).
			Str("error", cr.Error).
			Msg("case errored")
		return cr
	}

	r.grade(caseCtx, c, tr, &cr)
	return cr
}

// complete performs one provider call, consulting the cache first. Cache
// hits skip the pacing delay; misses pay the delay, call the provider and
// populate the cache.
func (r *Runner) complete(ctx context.Context, target Target, req *provider.Request, tr *trace.CaseTrace) (*provider.Response, error) {
	key := cache.Key(target.ID, req)
	if entry, ok := r.cache.Get(key); ok {
		tr.MarkCacheHit()
		r.log.Debug().Str("provider", target.ID).Msg("cache hit")
		return entry.Response, nil
	}

	if r.cfg.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.Delay):
		}
	}

	resp, err := target.Provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, &cache.Entry{Response: resp, CreatedAt: time.Now()})
	return resp, nil
}

// grade runs the case's assertions and folds the composite result into cr.
func (r *Runner) grade(ctx context.Context, c suite.EvalCase, tr *trace.CaseTrace, cr *result.CaseResult) {
	if len(c.Asserts) == 0 {
		cr.Status = assert.StatusPass
		cr.Pass = true
		cr.Score = 1.0
		return
	}

	deps := r.deps
	if deps.RubricJudge != nil {
		inner := deps.RubricJudge
		deps.RubricJudge = func(rubric string) assert.Assertion {
			a := inner(rubric)
			if ra, ok := a.(*assert.RubricAssertion); ok {
				ra.Ctx = ctx
			}
			return a
		}
	}

	weighted := make([]assert.Weighted, 0, len(c.Asserts))
	for _, spec := range c.Asserts {
		a, err := assert.FromSpec(spec, deps)
		if err != nil {
			cr.Status = assert.StatusError
			cr.Error = fmt.Sprintf("building assertion %q: %v", spec.Type, err)
			return
		}
		weighted = append(weighted, assert.Weighted{Assertion: a, Weight: spec.Weight})
	}

	input := assert.Input{
		Output:         cr.FinalResponse,
		ExpectedOutput: c.ExpectedOutput,
		Latency:        cr.Duration,
		Cost:           cr.Cost,
		ToolCalls:      tr.GetToolCalls(),
	}

	comp := assert.NewCompositeScorer(c.Threshold).Score(input, weighted)
	cr.Status = comp.Status
	cr.Pass = comp.Pass
	cr.Score = comp.CompositeScore
	cr.AssertionScores = comp.Scores
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prompteval/prompteval/internal/logger"
	"github.com/prompteval/prompteval/pkg/assert"
	"github.com/prompteval/prompteval/pkg/cache"
	"github.com/prompteval/prompteval/pkg/config"
	"github.com/prompteval/prompteval/pkg/diff"
	"github.com/prompteval/prompteval/pkg/prompt"
	"github.com/prompteval/prompteval/pkg/provider"
	"github.com/prompteval/prompteval/pkg/report"
	"github.com/prompteval/prompteval/pkg/result"
	"github.com/prompteval/prompteval/pkg/review"
	"github.com/prompteval/prompteval/pkg/runner"
	"github.com/prompteval/prompteval/pkg/suite"
	"github.com/prompteval/prompteval/pkg/web"
)

var evalCmd = &cobra.Command{
	Use:     "eval",
	Aliases: []string{"run"},
	Short:   "Run eval suites",
	Long: `Execute eval suites against the configured LLM providers.

Every case runs against every provider the suite targets. Outputs are
graded by the case's assertions and results are saved to a JSON file for
later comparison with 'prompteval diff'.`,
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}

	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyEvalFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	suites, err := loadSuites(cmd, cfg)
	if err != nil {
		return err
	}

	prompts, err := prompt.LoadPaths(cfg.Prompts)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	responseCache, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer responseCache.Close()

	policy := cfg.RetryPolicy()

	deps, err := buildJudgeDeps(cmd, cfg, policy)
	if err != nil {
		return err
	}

	r := runner.New(runner.Config{
		MaxConcurrency: cfg.Evaluate.MaxConcurrency,
		Delay:          cfg.Evaluate.Delay,
		Timeout:        cfg.Evaluate.Timeout,
	}, responseCache, deps)

	tags := tagFilters(cmd)
	overrideProviders, _ := cmd.Flags().GetStringSlice("provider")
	promptOverride, _ := cmd.Flags().GetString("prompt")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if outputPath != "" && len(suites) > 1 {
		return fmt.Errorf("--output only supports a single suite, got %d", len(suites))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var failed int
	for _, s := range suites {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("suite validation failed: %w", err)
		}
		s = s.FilterByTag(tags)
		if len(s.Cases) == 0 {
			log.Warn().Str("suite", s.Name).Msg("no cases match tag filter, skipping")
			continue
		}

		pv, err := resolvePrompt(prompts, s, promptOverride)
		if err != nil {
			return err
		}

		providerIDs := s.Providers
		if len(overrideProviders) > 0 {
			providerIDs = overrideProviders
		}
		targets, err := runner.BuildTargets(cfg.Providers, providerIDs, policy)
		if err != nil {
			return err
		}

		start := time.Now()
		progress := func(completed, total int, caseName, providerID string, elapsed time.Duration, caseErr error) {
			status := "ok"
			if caseErr != nil {
				status = fmt.Sprintf("error: %v", caseErr)
			}
			fmt.Printf("  [%d/%d] %s @ %s (%s) %s\n",
				completed, total, caseName, providerID, report.FormatDuration(elapsed), status)
		}

		summary, err := r.Run(ctx, s, pv, targets, progress)
		if err != nil {
			return fmt.Errorf("running suite %q: %w", s.Name, err)
		}

		path := outputPath
		if path == "" {
			path = result.DefaultPath(cfg.OutputDir, s.Name, start)
		}
		if err := summary.Save(path); err != nil {
			return err
		}
		fmt.Printf("\nResults saved to %s\n\n", path)

		switch format {
		case "json":
			if err := report.WriteJSON(os.Stdout, summary); err != nil {
				return err
			}
		case "markdown":
			if err := report.WriteMarkdown(os.Stdout, summary); err != nil {
				return err
			}
		default:
			if verbose {
				report.PrintVerbose(os.Stdout, summary, true)
			} else {
				report.PrintSummaryTable(os.Stdout, summary, true)
			}
		}

		failed += summary.Stats.FailedCases + summary.Stats.ErroredCases
	}

	if failed > 0 {
		return fmt.Errorf("%d case(s) failed", failed)
	}
	return nil
}

// applyEvalFlags layers command-line overrides on top of the loaded config.
func applyEvalFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetInt("max-concurrency"); v > 0 {
		cfg.Evaluate.MaxConcurrency = v
	}
	if v, _ := cmd.Flags().GetDuration("delay"); v >= 0 && cmd.Flags().Changed("delay") {
		cfg.Evaluate.Delay = v
	}
	if v, _ := cmd.Flags().GetBool("no-cache"); v {
		cfg.Cache.Enabled = false
	}
}

// tagFilters merges --tag and --filter-tag into one filter set.
func tagFilters(cmd *cobra.Command) []string {
	tags, _ := cmd.Flags().GetStringSlice("tag")
	filterTags, _ := cmd.Flags().GetStringSlice("filter-tag")
	return append(tags, filterTags...)
}

// loadSuites reads the suites named by --suite, falling back to the
// config's suite paths.
func loadSuites(cmd *cobra.Command, cfg *config.Config) ([]*suite.EvalSuite, error) {
	paths, _ := cmd.Flags().GetStringSlice("suite")
	if len(paths) == 0 {
		paths = cfg.Suites
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no suites given: pass --suite or set 'suites' in the config")
	}

	suites, err := suite.LoadPaths(paths)
	if err != nil {
		return nil, err
	}
	if len(suites) == 0 {
		return nil, fmt.Errorf("no suite files found under %s", strings.Join(paths, ", "))
	}
	return suites, nil
}

// resolvePrompt picks the prompt variant a suite runs with. Suites with no
// prompt of their own use a passthrough template that sends the case's
// "prompt" variable verbatim.
func resolvePrompt(prompts []*prompt.PromptVariant, s *suite.EvalSuite, override string) (*prompt.PromptVariant, error) {
	name := s.Prompt
	if override != "" {
		name = override
	}
	if name == "" {
		return &prompt.PromptVariant{
			Name: "passthrough",
			User: "{{.prompt}}",
		}, nil
	}

	pv := prompt.FindByName(prompts, name)
	if pv == nil {
		return nil, fmt.Errorf("suite %q references unknown prompt %q", s.Name, name)
	}
	return pv, nil
}

// buildJudgeDeps wires the llm-rubric judge. The judge provider is picked
// by --judge, defaulting to the first configured provider.
func buildJudgeDeps(cmd *cobra.Command, cfg *config.Config, policy provider.RetryPolicy) (assert.Deps, error) {
	judgeID, _ := cmd.Flags().GetString("judge")

	var pc *config.ProviderConfig
	if judgeID != "" {
		for i := range cfg.Providers {
			if cfg.Providers[i].ID == judgeID {
				pc = &cfg.Providers[i]
				break
			}
		}
		if pc == nil {
			pc = &config.ProviderConfig{ID: judgeID}
		}
	} else if len(cfg.Providers) > 0 {
		pc = &cfg.Providers[0]
	}

	if pc == nil {
		// No judge available; llm-rubric assertions will error at grading.
		return assert.Deps{}, nil
	}

	judge, err := provider.Build(pc.Spec(), policy)
	if err != nil {
		return assert.Deps{}, fmt.Errorf("building judge provider %q: %w", pc.ID, err)
	}
	_, model, err := provider.ParseID(pc.ID)
	if err != nil {
		return assert.Deps{}, err
	}

	return assert.Deps{
		RubricJudge: func(rubric string) assert.Assertion {
			return &assert.RubricAssertion{
				Provider: judge,
				Model:    model,
				Rubric:   rubric,
			}
		},
	}, nil
}

// --- diff command ---

var diffCmd = &cobra.Command{
	Use:   "diff <run-a.json> <run-b.json>",
	Short: "Compare two run results",
	Long: `Compare results from two eval runs side-by-side.

Shows score regressions, improvements, and unchanged cases. Useful for
evaluating prompt changes or model upgrades.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := result.LoadSummary(args[0])
		if err != nil {
			return err
		}
		b, err := result.LoadSummary(args[1])
		if err != nil {
			return err
		}

		threshold, _ := cmd.Flags().GetFloat64("threshold")
		dr := diff.Compare(a, b, threshold)

		if only, _ := cmd.Flags().GetStringSlice("only"); len(only) > 0 {
			cats := make([]diff.Category, len(only))
			for i, o := range only {
				cats[i] = diff.Category(o)
			}
			dr = dr.Filter(cats)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, err := dr.JSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		dr.PrintTable(os.Stdout)
		if dr.Summary.Regressed > 0 {
			return fmt.Errorf("%d case(s) regressed", dr.Summary.Regressed)
		}
		return nil
	},
}

// --- review command ---

var reviewCmd = &cobra.Command{
	Use:   "review <run.json>",
	Short: "Review flagged cases from a run",
	Long: `Interactively grade cases that were flagged during an eval run.

By default only cases with the review status (from human-review
assertions) are shown. Grades are written back to the run file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := result.LoadSummary(args[0])
		if err != nil {
			return err
		}

		filterStr, _ := cmd.Flags().GetString("filter")
		reviewer := &review.Reviewer{In: os.Stdin, Out: os.Stdout}

		reviewed, err := reviewer.Review(summary, review.ParseFilter(filterStr))
		if err != nil {
			return err
		}
		if reviewed == 0 {
			return nil
		}

		if err := summary.Save(args[0]); err != nil {
			return err
		}
		fmt.Printf("\n%d case(s) graded, results updated in %s\n", reviewed, args[0])
		return nil
	},
}

// --- view command ---

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Serve past runs over HTTP",
	Long: `Start a local web server that lists past eval runs and exposes
their full results as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if _, err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}

		port, _ := cmd.Flags().GetInt("port")
		addr := fmt.Sprintf(":%d", port)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Serving results from %s on http://localhost%s\n", cfg.OutputDir, addr)
		return web.New(cfg.OutputDir).Run(ctx, addr)
	},
}

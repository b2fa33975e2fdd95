// Command prompteval evaluates LLM prompts and providers against YAML
// test suites.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prompteval/prompteval/pkg/cache"
	"github.com/prompteval/prompteval/pkg/config"
	"github.com/prompteval/prompteval/pkg/prompt"
	"github.com/prompteval/prompteval/pkg/suite"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prompteval",
	Short: "LLM prompt and provider evaluation",
	Long: `prompteval runs YAML-defined test suites against one or more LLM
providers, grades the outputs with configurable assertions, and reports
pass/fail results with latency, token and cost statistics.

Use 'prompteval init' to scaffold a new project, then 'prompteval eval'
to execute suites.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and suite files",
	Long: `Check configuration and suite files for errors.

Validates YAML syntax, required fields, provider IDs, assertion types
and cache settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suitePath, _ := cmd.Flags().GetString("suite")
		if suitePath != "" {
			s, err := suite.Load(suitePath)
			if err != nil {
				return fmt.Errorf("loading suite: %w", err)
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("suite validation failed: %w", err)
			}
			fmt.Printf("Suite %q is valid (%d cases).\n", s.Name, len(s.Cases))
		}

		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		fmt.Printf("Config %q is valid.\n", cfgPath)

		return nil
	},
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available resources",
	Long:  `List configured prompts, suites, or providers.`,
}

var listPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List available prompt templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		promptDir := filepath.Join(dir, "prompts")

		prompts, err := prompt.LoadDir(promptDir)
		if err != nil {
			return fmt.Errorf("loading prompts from %s: %w", promptDir, err)
		}

		if len(prompts) == 0 {
			fmt.Println("No prompt templates found.")
			return nil
		}

		for _, p := range prompts {
			desc := p.Description
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Printf("  %-20s %s\n", p.Name, desc)
		}
		return nil
	},
}

var listSuitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "List available eval suites",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		suiteDir := filepath.Join(dir, "suites")

		suites, err := suite.LoadDir(suiteDir)
		if err != nil {
			return fmt.Errorf("loading suites from %s: %w", suiteDir, err)
		}

		if len(suites) == 0 {
			fmt.Println("No eval suites found.")
			return nil
		}

		for _, s := range suites {
			desc := s.Description
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Printf("  %-20s %-40s (%d cases)\n", s.Name, desc, len(s.Cases))
		}
		return nil
	},
}

var listProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if len(cfg.Providers) == 0 {
			fmt.Println("No providers configured.")
			return nil
		}

		for _, pc := range cfg.Providers {
			label := pc.Label
			if label == "" {
				label = "(no label)"
			}
			fmt.Printf("  %-36s %s\n", pc.ID, label)
		}
		return nil
	},
}

// --- cache command ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the disk response cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		opts := cfg.Cache
		if opts.Backend != "" && opts.Backend != "disk" {
			return fmt.Errorf("cache clear only supports the disk backend, configured backend is %q", opts.Backend)
		}
		if opts.Dir == "" {
			opts.Dir = cache.DefaultOptions().Dir
		}

		d, err := cache.NewDisk(opts.Dir, opts.TTL)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		if err := d.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Printf("Cleared cache directory %s.\n", opts.Dir)
		return nil
	},
}

// --- init command ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new eval project",
	Long: `Scaffold a new eval project with example configuration, prompts,
suites, and a results directory.

Creates the following structure:
  prompteval.yaml    - Main configuration file
  prompts/           - Prompt template directory
  suites/            - Eval suite directory
  results/           - Run result output directory`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dirs := []string{"prompts", "suites", "results"}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
		fmt.Printf("  created %s/\n", d)
	}

	if err := writeExampleConfig("prompteval.yaml"); err != nil {
		return err
	}
	if err := writeExamplePrompt(filepath.Join("prompts", "default.yaml")); err != nil {
		return err
	}
	if err := writeExampleSuite(filepath.Join("suites", "example.yaml")); err != nil {
		return err
	}

	fmt.Println("\nProject initialized. Run 'prompteval validate' to check your config.")
	return nil
}

func writeYAML(path string, data any) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  skipped %s (already exists)\n", path)
		return nil
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("  created %s\n", path)
	return nil
}

func writeExampleConfig(path string) error {
	data := map[string]any{
		"description": "Example eval project",
		"prompts":     []string{"prompts"},
		"suites":      []string{"suites"},
		"providers": []map[string]any{
			{"id": "openai:gpt-4o-mini"},
			{"id": "anthropic:messages:claude-3-5-haiku-20241022"},
		},
		"evaluate_options": map[string]any{
			"max_concurrency": 4,
			"delay":           "0s",
			"timeout":         "60s",
		},
		"output_dir": "results",
	}
	return writeYAML(path, data)
}

func writeExamplePrompt(path string) error {
	data := map[string]any{
		"name":        "default",
		"description": "Answer user questions concisely",
		"system":      "You are a helpful assistant.",
		"user": `Answer the user's question concisely.

Question: {{.question}}`,
	}
	return writeYAML(path, data)
}

func writeExampleSuite(path string) error {
	data := map[string]any{
		"name":        "example",
		"description": "An example eval suite to get started",
		"prompt":      "default",
		"cases": []map[string]any{
			{
				"name": "simple-greeting",
				"vars": map[string]any{
					"question": "Say hello.",
				},
				"asserts": []map[string]any{
					{
						"type":  "icontains",
						"value": "hello",
					},
				},
			},
		},
	}
	return writeYAML(path, data)
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "prompteval.yaml", "Path to config file")

	// eval command flags
	evalCmd.Flags().StringSliceP("suite", "s", nil, "Suite file or directory (repeatable, overrides config)")
	evalCmd.Flags().StringP("prompt", "p", "", "Override prompt template name")
	evalCmd.Flags().StringSlice("provider", nil, "Provider IDs to run against (overrides suite and config)")
	evalCmd.Flags().IntP("max-concurrency", "j", 0, "Max concurrent case/provider pairs (0 = config default)")
	evalCmd.Flags().Duration("delay", -1, "Delay before each provider request")
	evalCmd.Flags().StringSliceP("tag", "t", nil, "Only run cases with one of these tags")
	evalCmd.Flags().StringSlice("filter-tag", nil, "Only run cases with one of these tags (alias for --tag)")
	evalCmd.Flags().StringP("output", "o", "", "Output file path (default: <output_dir>/<timestamp>-<suite>.json)")
	evalCmd.Flags().String("judge", "", "Provider ID used for llm-rubric grading (default: first configured provider)")
	evalCmd.Flags().String("format", "table", "Report format: table, json, markdown")
	evalCmd.Flags().Bool("no-cache", false, "Disable the response cache for this run")
	evalCmd.Flags().BoolP("verbose", "v", false, "Print per-case details")

	// diff command flags
	diffCmd.Flags().Float64("threshold", 0.0, "Minimum score change to classify as improved/regressed")
	diffCmd.Flags().String("format", "table", "Output format: table, json")
	diffCmd.Flags().StringSlice("only", nil, "Only show these categories (improved, regressed, unchanged, new, removed)")

	// review command flags
	reviewCmd.Flags().String("filter", "review", "Which cases to review: review, fail, all")

	// view command flags
	viewCmd.Flags().Int("port", 8088, "Port for the results server")

	// list command flags
	listCmd.PersistentFlags().String("dir", ".", "Base directory to search")
	listCmd.AddCommand(listPromptsCmd)
	listCmd.AddCommand(listSuitesCmd)
	listCmd.AddCommand(listProvidersCmd)

	// validate command flags
	validateCmd.Flags().String("suite", "", "Path to suite file to validate")
	validateCmd.Flags().String("config", "prompteval.yaml", "Path to config file to validate")

	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cacheCmd)
}

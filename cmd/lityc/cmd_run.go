package main

import (
	"context"
	"fmt"

	"github.com/Alon769/lity/internal/driver"
	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/logging"
	"github.com/Alon769/lity/internal/mockhost"
	"github.com/Alon769/lity/internal/store"
	"github.com/Alon769/lity/internal/trace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	runRuleDir  string
	runFacts    string
	runDB       string
	runBatch    []string
	runMaxIters int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compile the rule set and run fireAllRules against a fact seed",
	Long: `Compiles the configured rule directories and runs fireAllRules to
quiescence against the facts in --facts. With --batch, each listed facts
file is run as an independent contract instance, concurrently, each with
its own freshly-compiled graph and fact table.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRuleDir, "rule-dir", "", "Rule directory to compile (default: config execution.rule_dirs)")
	runCmd.Flags().StringVar(&runFacts, "facts", "", "JSON facts seed file for a single run")
	runCmd.Flags().StringVar(&runDB, "db", "", "SQLite fact store path (default: in-memory mock host)")
	runCmd.Flags().StringSliceVar(&runBatch, "batch", nil, "Run concurrently, one contract instance per listed facts seed file")
	runCmd.Flags().IntVar(&runMaxIters, "max-iterations", 0, "Iteration limit (default: config execution.max_iterations)")
}

func runRun(cmd *cobra.Command, args []string) error {
	dirs := cfg.Execution.RuleDirs
	if runRuleDir != "" {
		dirs = []string{runRuleDir}
	}

	// Compile once up front so a bad rule file fails fast, before any
	// instance goroutines are spawned.
	if _, err := loadRuleSet(dirs, cfg.Execution.RuleFileExt); err != nil {
		return err
	}

	maxIters := cfg.Execution.MaxIterations
	if runMaxIters != 0 {
		maxIters = runMaxIters
	}

	log, err := newCLILogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	recorder := trace.NewRecorder(10_000)

	seedFiles := runBatch
	if len(seedFiles) == 0 {
		seedFiles = []string{runFacts}
	}

	eg, egCtx := errgroup.WithContext(cmd.Context())
	results := make([][]driver.Iteration, len(seedFiles))
	for i, seedFile := range seedFiles {
		i, seedFile := i, seedFile
		eg.Go(func() error {
			fired, err := runOneInstance(egCtx, dirs, seedFile, maxIters, log, recorder)
			if err != nil {
				return fmt.Errorf("instance %d (%s): %w", i, seedFile, err)
			}
			results[i] = fired
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, fired := range results {
		fmt.Printf("instance %d (%s): %d iteration(s)\n", i, seedFiles[i], len(fired))
		for _, it := range fired {
			fmt.Printf("  %s %v\n", it.RuleName, it.Tuple)
		}
	}
	return nil
}

// runOneInstance compiles its own Rete graph (graphs carry mutable
// per-node buffers refreshed in place, so concurrent instances running
// via --batch must not share one) and runs fireAllRules to quiescence
// over a fresh fact table seeded from seedFile.
func runOneInstance(ctx context.Context, dirs []string, seedFile string, maxIters int, log *zap.Logger, recorder *trace.Recorder) ([]driver.Iteration, error) {
	rs, err := loadRuleSet(dirs, cfg.Execution.RuleFileExt)
	if err != nil {
		return nil, err
	}

	table := facts.NewTable()

	var storage hostiface.Storage
	var alloc hostiface.Allocator
	if runDB != "" {
		s, err := store.Open(instanceDBPath(runDB, seedFile))
		if err != nil {
			return nil, err
		}
		defer s.Close()
		storage, alloc = s, s
	} else {
		h := mockhost.New()
		storage, alloc = h, h
	}

	if err := loadFactSeeds(seedFile, table, alloc); err != nil {
		return nil, err
	}

	d := &driver.Driver{
		Graph:         rs.Graph,
		Facts:         table,
		Storage:       storage,
		Alloc:         alloc,
		Effects:       cliEffects{},
		Rules:         rs.Rules,
		MaxIterations: maxIters,
		Log:           log,
		Audit:         logging.Audit(),
		Recorder:      recorder,
	}
	return d.Fire(ctx)
}

func instanceDBPath(base, seedFile string) string {
	if seedFile == "" {
		return base
	}
	return base + "." + sanitizeForPath(seedFile)
}

func sanitizeForPath(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

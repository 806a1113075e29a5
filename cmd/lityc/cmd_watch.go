package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alon769/lity/internal/logging"
	"github.com/Alon769/lity/internal/rete"
	"github.com/Alon769/lity/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchRuleDir  string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a rule directory and recompile on change",
	Long:  `Hot-reloads .rule files as they change, recompiling each one against a shared Rete graph and reporting success or failure. Runs until interrupted.`,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRuleDir, "rule-dir", "", "Rule directory to watch (default: first config execution.rule_dirs entry)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Settle time before a changed file is recompiled")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := watchRuleDir
	if dir == "" {
		if len(cfg.Execution.RuleDirs) == 0 {
			return fmt.Errorf("lityc: no rule directory configured")
		}
		dir = cfg.Execution.RuleDirs[0]
	}

	g := rete.NewGraph()
	w, err := watch.New(dir, g, watchDebounce)
	if err != nil {
		return fmt.Errorf("lityc: start watcher: %w", err)
	}

	w.OnReload = func(cr watch.CompileResult) {
		fmt.Printf("reloaded %s: %d rule(s)\n", cr.Path, len(cr.Results))
		for _, r := range cr.Results {
			fmt.Printf("  %s\n", r.Rule)
		}
	}
	w.OnError = func(path string, err error) {
		fmt.Printf("error in %s: %v\n", path, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("lityc: start watcher: %w", err)
	}
	logging.Get(logging.CategoryCLI).Info("watching %s", dir)
	fmt.Printf("watching %s (ctrl-c to stop)\n", dir)

	<-ctx.Done()
	w.Stop()
	return nil
}

package main

import (
	"fmt"

	"github.com/Alon769/lity/internal/driver"
	"github.com/Alon769/lity/internal/facts"
	"github.com/Alon769/lity/internal/mockhost"
	"github.com/Alon769/lity/internal/trace"
	"github.com/Alon769/lity/internal/trace/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	traceRuleDir string
	traceFacts   string
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Compile and fire the rule set, then open the interactive Rete inspector",
	Long:  `Runs fireAllRules against --facts and then opens an interactive terminal inspector over the resulting graph and firing history.`,
	RunE:  runTrace,
}

func init() {
	traceCmd.Flags().StringVar(&traceRuleDir, "rule-dir", "", "Rule directory to compile (default: config execution.rule_dirs)")
	traceCmd.Flags().StringVar(&traceFacts, "facts", "", "JSON facts seed file")
}

func runTrace(cmd *cobra.Command, args []string) error {
	dirs := cfg.Execution.RuleDirs
	if traceRuleDir != "" {
		dirs = []string{traceRuleDir}
	}
	rs, err := loadRuleSet(dirs, cfg.Execution.RuleFileExt)
	if err != nil {
		return err
	}

	h := mockhost.New()
	table := facts.NewTable()
	if err := loadFactSeeds(traceFacts, table, h); err != nil {
		return err
	}
	recorder := trace.NewRecorder(10_000)
	d := &driver.Driver{
		Graph:         rs.Graph,
		Facts:         table,
		Storage:       h,
		Alloc:         h,
		Effects:       cliEffects{},
		Rules:         rs.Rules,
		MaxIterations: cfg.Execution.MaxIterations,
		Recorder:      recorder,
	}
	if _, err := d.Fire(cmd.Context()); err != nil {
		return fmt.Errorf("lityc: fire: %w", err)
	}

	model := tui.New(rs.Graph, recorder, ruleNameByTerminal(rs))

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

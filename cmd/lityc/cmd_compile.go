package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compileRuleDir string

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a rule directory and report any errors",
	Long:  `Parses and lowers every .rule file in the configured rule directories into a Rete graph, without running it. Exits non-zero on any compile error.`,
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileRuleDir, "rule-dir", "", "Rule directory to compile (default: config execution.rule_dirs)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	dirs := cfg.Execution.RuleDirs
	if compileRuleDir != "" {
		dirs = []string{compileRuleDir}
	}

	rs, err := loadRuleSet(dirs, cfg.Execution.RuleFileExt)
	if err != nil {
		return err
	}

	fmt.Printf("compiled %d rule(s) from %v\n", len(rs.Rules), dirs)
	for _, r := range rs.Rules {
		fmt.Printf("  %s (terminal node #%d)\n", r.Name, r.Terminal)
	}
	return nil
}

// Package main implements lityc, the command-line front end for the
// lity rule engine: compiling, running, watching, explaining, and
// interactively inspecting a directory of .rule files against a
// contract instance's fact store.
//
// File Index
//
// Entry Point & Global State:
//   - main.go        - entry point, rootCmd, global flags
//   - engine.go      - shared rule loading
//   - cmd_compile.go - compile subcommand
//   - cmd_run.go     - run subcommand (single instance and --batch)
//   - cmd_watch.go   - watch subcommand
//   - cmd_trace.go   - trace subcommand (Bubble Tea inspector)
//   - cmd_explain.go - explain subcommand (glamour-rendered rule summary)
package main

import (
	"fmt"
	"os"

	"github.com/Alon769/lity/internal/config"
	"github.com/Alon769/lity/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	workspace  string
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lityc",
	Short: "lityc - compile and run lity rule sets",
	Long: `lityc is the command-line front end for the lity rule engine.

It compiles .rule files into a Rete matching network, runs fireAllRules
against a contract instance's fact store, and offers a hot-reload watch
mode and an interactive Rete inspector for debugging a rule set.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ws := workspace
		if ws == "" {
			var err error
			ws, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("lityc: getwd: %w", err)
			}
			workspace = ws
		}

		path := configPath
		if path == "" {
			path = "lity.yaml"
		}
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("lityc: load config: %w", err)
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		cfg = loaded

		if err := logging.Initialize(ws, logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "lityc: warning: file logging disabled: %v\n", err)
		}

		if _, err := logging.InitAudit(ws, uuid.NewString()); err != nil {
			fmt.Fprintf(os.Stderr, "lityc: warning: audit logging disabled: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to lity.yaml (default: ./lity.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(explainCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Alon769/lity/internal/dsl"
	"github.com/Alon769/lity/internal/driver"
	"github.com/Alon769/lity/internal/lhscompile"
	"github.com/Alon769/lity/internal/logging"
	"github.com/Alon769/lity/internal/rete"
)

// ruleSet is a compiled rule directory: the shared Rete graph every rule
// was lowered into, and the driver.Rule list in the textual order the
// conflict resolver must respect (files walked and rules within a file
// kept in the order they were declared).
type ruleSet struct {
	Graph *rete.Graph
	Rules []driver.Rule
}

// loadRuleSet reads every file named ext under each of dirs, in
// lexicographic path order, parses and compiles each rule it finds into
// a single shared graph, and returns the result. A compile error in one
// rule aborts the whole load, matching the watcher's own fail-the-file
// behavior (internal/watch.Watcher.reload).
func loadRuleSet(dirs []string, ext string) (*ruleSet, error) {
	g := rete.NewGraph()
	var rules []driver.Rule

	paths, err := collectRuleFiles(dirs, ext)
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("lityc: read %s: %w", path, err)
		}

		parsed, errs := dsl.ParseFile(string(data))
		if len(errs) > 0 {
			return nil, fmt.Errorf("lityc: %s: %w", path, errs[0])
		}

		for _, r := range parsed {
			cr, cerrs := lhscompile.Compile(r, g)
			if logging.Audit() != nil {
				if len(cerrs) > 0 {
					logging.Audit().RuleCompiled(r.Name, cerrs[0])
				} else {
					logging.Audit().RuleCompiled(r.Name, nil)
				}
			}
			if len(cerrs) > 0 {
				return nil, fmt.Errorf("lityc: %s: rule %q: %w", path, r.Name, cerrs[0])
			}
			rules = append(rules, driver.FromCompileResult(cr))
		}
	}

	return &ruleSet{Graph: g, Rules: rules}, nil
}

func collectRuleFiles(dirs []string, ext string) ([]string, error) {
	var paths []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("lityc: read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func ruleNameByTerminal(rs *ruleSet) map[rete.NodeID]string {
	out := make(map[rete.NodeID]string, len(rs.Rules))
	for _, r := range rs.Rules {
		out[r.Terminal] = r.Name
	}
	return out
}

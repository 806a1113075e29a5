package lhscompile

import (
	"github.com/Alon769/lity/internal/binding"
	"github.com/Alon769/lity/internal/hostiface"
	"github.com/Alon769/lity/internal/rete"
)

var trueVal = hostiface.Bool(true)

// CompileResult is one rule's compiled LHS: the binding table RHS code
// resolves names through, and the terminal node id the driver reads
// candidate tuples from.
type CompileResult struct {
	Rule     string
	Bindings *binding.Table
	Terminal rete.NodeID
	Action   Action
}

// Compile lowers rule's LHS into g and its RHS into an Action, in one
// pass so RHS compilation can report mutate-without-update errors
// against the same binding table the LHS produced.
func Compile(rule Rule, g *rete.Graph) (*CompileResult, []error) {
	if len(rule.Patterns) == 0 {
		return nil, []error{errf(rule.Name, -1, "a rule must have at least one pattern")}
	}

	var errs []error
	known := make(map[string]scopeEntry)
	table := binding.NewTable()

	var prev rete.NodeID
	havePrev := false

	for k, pat := range rule.Patterns {
		if pat.Outer != "" {
			if _, exists := known[pat.Outer]; exists {
				errs = append(errs, errf(rule.Name, k, "outer binding %q shadows an earlier binding", pat.Outer))
			} else {
				known[pat.Outer] = scopeEntry{pos: k, kind: binding.Outer}
				if err := table.Bind(pat.Outer, binding.Outer, k, ""); err != nil {
					errs = append(errs, errf(rule.Name, k, "%s", err))
				}
			}
		}

		localDecl := make(map[string]int)
		for i, fe := range pat.Fields {
			if fe.Bind != nil {
				if _, seen := localDecl[fe.Bind.Name]; !seen {
					localDecl[fe.Bind.Name] = i
				}
			}
		}
		var alphaAbs, betaAbs []rete.Expr

		for i, fe := range pat.Fields {
			if fe.Bind != nil {
				name := fe.Bind.Name
				if _, exists := known[name]; exists {
					errs = append(errs, errf(rule.Name, k, "inner binding %q shadows an earlier binding", name))
					continue
				}
				known[name] = scopeEntry{pos: k, kind: binding.Inner, field: fe.Bind.Field}
				if err := table.Bind(name, binding.Inner, k, fe.Bind.Field); err != nil {
					errs = append(errs, errf(rule.Name, k, "%s", err))
				}
				continue
			}

			compiled, positions, err := compileAbs(rule.Name, k, i, known, localDecl, fe.Constraint)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if isBeta(k, positions) {
				betaAbs = append(betaAbs, compiled)
			} else {
				alphaAbs = append(alphaAbs, compiled)
			}
		}

		if len(errs) > 0 {
			// Keep scanning remaining patterns for more diagnostics, but
			// don't attempt to build a graph out of a broken rule.
			continue
		}

		alphaLocal := remapToLocal(andAll(alphaAbs), k)
		alphaID := g.AddAlpha(pat.Type, alphaLocal, alphaKeyFor(pat.Type, alphaLocal))

		if k == 0 {
			prev = alphaID
			havePrev = true
			continue
		}
		if !havePrev {
			// Unreachable given the k==0 branch above, but keeps the fold
			// well-defined if pattern 0 failed to compile.
			continue
		}
		joinPred := andAll(betaAbs)
		betaID, err := g.AddBeta(prev, alphaID, joinPred)
		if err != nil {
			errs = append(errs, errf(rule.Name, k, "%s", err))
			continue
		}
		prev = betaID
	}

	action, rhsErrs := compileRHS(rule, table)
	errs = append(errs, rhsErrs...)

	if len(errs) > 0 {
		return nil, errs
	}

	terminal, err := g.AddTerminal(rule.Name, prev)
	if err != nil {
		return nil, []error{errf(rule.Name, -1, "%s", err)}
	}

	return &CompileResult{Rule: rule.Name, Bindings: table, Terminal: terminal, Action: action}, nil
}

// alphaKeyFor renders a canonical dedup key for alpha-node sharing: two
// patterns of the same fact type compiled to an identical local
// constraint tree share one alpha node.
func alphaKeyFor(factType string, local rete.Expr) string {
	return factType + "|" + renderExpr(local)
}

func renderExpr(e rete.Expr) string {
	switch n := e.(type) {
	case rete.FieldAt:
		return "f" + itoa(n.Pos) + "." + n.Field
	case rete.HandleAt:
		return "h" + itoa(n.Pos)
	case rete.Lit:
		return "lit:" + n.Val.String()
	case rete.Bin:
		return "(" + renderExpr(n.L) + " " + itoa(int(n.Op)) + " " + renderExpr(n.R) + ")"
	case rete.Un:
		return "!(" + renderExpr(n.X) + ")"
	default:
		return "?"
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

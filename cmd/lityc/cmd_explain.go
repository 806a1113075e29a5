package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Alon769/lity/internal/dsl"
	"github.com/Alon769/lity/internal/lhscompile"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var explainWordWrap int

var explainCmd = &cobra.Command{
	Use:   "explain <file.rule>",
	Short: "Render a rule file's patterns and actions as readable Markdown",
	Long:  `Parses (without compiling) a .rule file and renders each rule's LHS patterns and RHS actions as Markdown, for reading a rule set without a Rete graph in hand.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	explainCmd.Flags().IntVar(&explainWordWrap, "width", 100, "Word-wrap width for rendered output")
}

func runExplain(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("lityc: read %s: %w", args[0], err)
	}

	rules, errs := dsl.ParseFile(string(data))
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("lityc: %s: %d parse error(s)", args[0], len(errs))
	}

	md := renderRulesMarkdown(args[0], rules)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(explainWordWrap),
	)
	if err != nil {
		fmt.Print(md) // fall back to raw markdown if the terminal can't be styled
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return nil
	}
	fmt.Print(out)
	return nil
}

func renderRulesMarkdown(path string, rules []lhscompile.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", path)
	for _, r := range rules {
		fmt.Fprintf(&b, "## %s\n\n", r.Name)
		b.WriteString("**when**\n\n")
		for _, p := range r.Patterns {
			fmt.Fprintf(&b, "- %s\n", patternString(p))
		}
		b.WriteString("\n**then**\n\n")
		for _, s := range r.RHS {
			fmt.Fprintf(&b, "- %s\n", stmtString(s))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func patternString(p lhscompile.Pattern) string {
	var b strings.Builder
	if p.Outer != "" {
		fmt.Fprintf(&b, "%s: ", p.Outer)
	}
	fmt.Fprintf(&b, "%s(", p.Type)
	parts := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		if f.Bind != nil {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Bind.Name, f.Bind.Field))
		} else {
			parts = append(parts, exprString(f.Constraint))
		}
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(")")
	return b.String()
}

func stmtString(s lhscompile.Stmt) string {
	switch st := s.(type) {
	case lhscompile.SetFieldStmt:
		return fmt.Sprintf("%s.%s = %s", st.Name, st.Field, exprString(st.Value))
	case lhscompile.UpdateStmt:
		return fmt.Sprintf("update %s", st.Name)
	case lhscompile.FactInsertStmt:
		fields := make([]string, 0, len(st.Fields))
		for k, v := range st.Fields {
			fields = append(fields, fmt.Sprintf("%s: %s", k, exprString(v)))
		}
		return fmt.Sprintf("%s := factInsert %s{%s}", st.Result, st.TypeName, strings.Join(fields, ", "))
	case lhscompile.FactDeleteStmt:
		return fmt.Sprintf("factDelete %s", st.Name)
	case lhscompile.AbortStmt:
		return fmt.Sprintf("abort(%q)", st.Reason)
	default:
		return fmt.Sprintf("%T", s)
	}
}

func exprString(e lhscompile.SurfaceExpr) string {
	switch x := e.(type) {
	case lhscompile.Ident:
		return x.Name
	case lhscompile.FieldOf:
		return fmt.Sprintf("%s.%s", x.Base, x.Field)
	case lhscompile.Lit:
		return x.Val.String()
	case lhscompile.Bin:
		return fmt.Sprintf("(%s %s %s)", exprString(x.L), opString(x.Op), exprString(x.R))
	case lhscompile.Un:
		return fmt.Sprintf("!%s", exprString(x.X))
	default:
		return fmt.Sprintf("%T", e)
	}
}

func opString(op lhscompile.Op) string {
	switch op {
	case lhscompile.OpEq:
		return "=="
	case lhscompile.OpNe:
		return "!="
	case lhscompile.OpLt:
		return "<"
	case lhscompile.OpLe:
		return "<="
	case lhscompile.OpGt:
		return ">"
	case lhscompile.OpGe:
		return ">="
	case lhscompile.OpAdd:
		return "+"
	case lhscompile.OpSub:
		return "-"
	case lhscompile.OpMul:
		return "*"
	case lhscompile.OpDiv:
		return "/"
	case lhscompile.OpAnd:
		return "&&"
	case lhscompile.OpOr:
		return "||"
	default:
		return "?"
	}
}

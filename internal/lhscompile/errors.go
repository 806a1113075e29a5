package lhscompile

import "fmt"

// CompileError is one diagnostic raised while compiling a rule. The
// driver and any host surface these as host diagnostics rather than
// panicking.
type CompileError struct {
	Rule    string
	Pattern int // -1 when the error is not pattern-scoped (e.g. an RHS error)
	Msg     string
}

func (e *CompileError) Error() string {
	if e.Pattern < 0 {
		return fmt.Sprintf("rule %q: %s", e.Rule, e.Msg)
	}
	return fmt.Sprintf("rule %q, pattern %d: %s", e.Rule, e.Pattern, e.Msg)
}

func errf(rule string, pattern int, format string, args ...any) *CompileError {
	return &CompileError{Rule: rule, Pattern: pattern, Msg: fmt.Sprintf(format, args...)}
}

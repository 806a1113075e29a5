package dsl

import "fmt"

// ParseError is one syntax error found while parsing rule source,
// mirroring the shape of lhscompile.CompileError: a typed error list,
// not first-error-wins.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dsl: line %d: %s", e.Line, e.Msg)
}

func errf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

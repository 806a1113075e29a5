// Package logging provides audit logging that outputs a JSON-lines trail
// of compile and firing events for a contract instance's lifetime.
//
// Same append-only JSON-lines design and per-event trace-string
// rendering used elsewhere in this codebase for long-lived activity
// logs, with the event taxonomy built end to end for a Rete engine's
// compile and firing lifecycle and rendered as a plain grep-friendly
// summary string rather than a structured query language, since this
// engine has no query evaluator of its own to feed.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEventType identifies the kind of engine event being recorded.
type AuditEventType string

const (
	EventRuleCompiled   AuditEventType = "rule_compiled"
	EventCompileError   AuditEventType = "compile_error"
	EventRuleFired      AuditEventType = "rule_fired"
	EventFactInserted   AuditEventType = "fact_inserted"
	EventFactDeleted    AuditEventType = "fact_deleted"
	EventSessionAbort   AuditEventType = "session_abort"
	EventIterationStop  AuditEventType = "iteration_limit_reached"
	EventRuleFileReload AuditEventType = "rule_file_reload"
)

// AuditEvent is one append-only record in the audit trail.
type AuditEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	RuleName   string         `json:"rule_name,omitempty"`
	TupleSize  int            `json:"tuple_size,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"message,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	TraceFact  string         `json:"trace_fact"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger appends AuditEvents to a single JSON-lines file for a
// contract instance's lifetime.
type AuditLogger struct {
	sessionID string
}

// InitAudit opens (creating if necessary) the audit log for workspace.
func InitAudit(workspace, sessionID string) (*AuditLogger, error) {
	auditMu.Lock()
	defer auditMu.Unlock()

	dir := filepath.Join(workspace, ".lity", "audit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create audit directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", sessionID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open audit log: %w", err)
	}
	auditFile = f
	auditLogger = &AuditLogger{sessionID: sessionID}
	return auditLogger, nil
}

// CloseAudit closes the underlying audit file, if open.
func CloseAudit() error {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return nil
	}
	err := auditFile.Close()
	auditFile = nil
	auditLogger = nil
	return err
}

// Audit returns the process-wide audit logger, or nil if InitAudit was
// never called.
func Audit() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	return auditLogger
}

// Log writes event, stamping the timestamp and trace fact if unset.
func (a *AuditLogger) Log(event AuditEvent) {
	if a == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.TraceFact == "" {
		event.TraceFact = traceFact(event)
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(data)
	auditFile.Write([]byte("\n"))
}

// traceFact renders a compact predicate-style summary of event for quick
// grepping; it is a log convenience, not input to any rule evaluator.
func traceFact(e AuditEvent) string {
	var b strings.Builder
	b.WriteString(string(e.EventType))
	b.WriteByte('(')
	switch e.EventType {
	case EventRuleFired:
		fmt.Fprintf(&b, "%q, %d, %dms", e.RuleName, e.TupleSize, e.DurationMs)
	case EventRuleCompiled, EventCompileError:
		fmt.Fprintf(&b, "%q, success=%v", e.RuleName, e.Success)
	default:
		fmt.Fprintf(&b, "%q", e.Message)
	}
	b.WriteByte(')')
	return b.String()
}

// RuleFired records one fireAllRules iteration.
func (a *AuditLogger) RuleFired(ruleName string, tupleSize int, duration time.Duration) {
	a.Log(AuditEvent{
		EventType:  EventRuleFired,
		RuleName:   ruleName,
		TupleSize:  tupleSize,
		DurationMs: duration.Milliseconds(),
		Success:    true,
	})
}

// RuleCompiled records a successful or failed compile of rule ruleName.
func (a *AuditLogger) RuleCompiled(ruleName string, err error) {
	event := AuditEvent{EventType: EventRuleCompiled, RuleName: ruleName, Success: err == nil}
	if err != nil {
		event.EventType = EventCompileError
		event.Error = err.Error()
	}
	a.Log(event)
}

// FactInserted records a factInsert RHS operation.
func (a *AuditLogger) FactInserted(typeTag string, handle uint64) {
	a.Log(AuditEvent{
		EventType: EventFactInserted,
		Success:   true,
		Message:   fmt.Sprintf("%s#%d", typeTag, handle),
	})
}

// FactDeleted records a factDelete RHS operation.
func (a *AuditLogger) FactDeleted(handle uint64) {
	a.Log(AuditEvent{
		EventType: EventFactDeleted,
		Success:   true,
		Message:   fmt.Sprintf("#%d", handle),
	})
}

// SessionAbort records a host-triggered abort operator invocation.
func (a *AuditLogger) SessionAbort(reason string) {
	a.Log(AuditEvent{
		EventType: EventSessionAbort,
		Success:   false,
		Message:   reason,
	})
}

// IterationLimitReached records a driver.ErrIterationLimit termination.
func (a *AuditLogger) IterationLimitReached(limit int) {
	a.Log(AuditEvent{
		EventType: EventIterationStop,
		Success:   false,
		Fields:    map[string]any{"max_iterations": limit},
	})
}

// RuleFileReload records a hot-reload cycle picking up changed rule files.
func (a *AuditLogger) RuleFileReload(path string, ruleCount int) {
	a.Log(AuditEvent{
		EventType: EventRuleFileReload,
		Success:   true,
		Message:   path,
		Fields:    map[string]any{"rule_count": ruleCount},
	})
}

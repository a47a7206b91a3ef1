package types

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// EventCategory discriminates the four UnifiedEvent variants.
type EventCategory string

const (
	CategoryLifecycle EventCategory = "lifecycle"
	CategoryMessage   EventCategory = "message"
	CategoryOperation EventCategory = "operation"
	CategorySystem    EventCategory = "system"
)

// Status is the shared terminal/non-terminal status enum for operations
// and lifecycle events.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var eventSeq int64

// NewEventID produces a process-unique, sortable event identifier of the
// form "<kind>_<hint>_<seq>". It never collides within one process
// lifetime, which is all the Viewer Queue and debug log need.
func NewEventID(kind AgentKind, hint string) string {
	n := atomic.AddInt64(&eventSeq, 1)
	if hint == "" {
		return fmt.Sprintf("%s_%d", kind, n)
	}
	return fmt.Sprintf("%s_%s_%d", kind, hint, n)
}

// EventBase is embedded by every UnifiedEvent variant. raw is preserved
// verbatim and must never be mutated after construction (§3 invariant iii).
type EventBase struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    AgentKind       `json:"source"`
	SessionID string          `json:"session_id,omitempty"`
	TaskIndex int             `json:"task_index,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// UnifiedEvent is the tagged union every agent dialect normalises into.
// Implementations are LifecycleEvent, MessageEvent, OperationEvent, and
// SystemEvent; the Category method is the tag.
type UnifiedEvent interface {
	Category() EventCategory
	Base() EventBase
}

// LifecycleType enumerates the phase a LifecycleEvent marks.
type LifecycleType string

const (
	LifecycleSessionStart LifecycleType = "session_start"
	LifecycleTurnStart    LifecycleType = "turn_start"
	LifecycleTurnEnd      LifecycleType = "turn_end"
	LifecycleSessionEnd   LifecycleType = "session_end"
)

// LifecycleEvent marks a session or turn boundary.
type LifecycleEvent struct {
	EventBase
	LifecycleType LifecycleType         `json:"lifecycle_type"`
	Status        Status                `json:"status"`
	Model         string                 `json:"model,omitempty"`
	Stats         map[string]interface{} `json:"stats,omitempty"`
}

func (e LifecycleEvent) Category() EventCategory { return CategoryLifecycle }
func (e LifecycleEvent) Base() EventBase         { return e.EventBase }

// ContentType distinguishes plain text from reasoning/thinking content.
type ContentType string

const (
	ContentText      ContentType = "text"
	ContentReasoning ContentType = "reasoning"
)

// Role is the speaker of a MessageEvent.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageEvent carries one fragment of user or assistant text.
// IsDelta marks an incremental fragment that a later non-delta or
// role-changing event supersedes; the Invoker (not the parser) does the
// merging (§4.2).
type MessageEvent struct {
	EventBase
	ContentType ContentType `json:"content_type"`
	Role        Role        `json:"role"`
	Text        string      `json:"text"`
	IsDelta     bool        `json:"is_delta"`
}

func (e MessageEvent) Category() EventCategory { return CategoryMessage }
func (e MessageEvent) Base() EventBase         { return e.EventBase }

// OperationType classifies what kind of side effect a tool call had.
type OperationType string

const (
	OperationCommand OperationType = "command"
	OperationFile    OperationType = "file"
	OperationTool    OperationType = "tool"
	OperationMCP     OperationType = "mcp"
	OperationSearch  OperationType = "search"
	OperationTodo    OperationType = "todo"
)

// OperationEvent represents a tool/command/MCP/search/todo invocation or
// its result. A running operation is expected to eventually be
// superseded by an event with the same OperationID and a terminal
// status, or the run ends (§3 invariant i).
type OperationEvent struct {
	EventBase
	OperationType OperationType          `json:"operation_type"`
	Name          string                 `json:"name"`
	OperationID   string                 `json:"operation_id"`
	Input         string                 `json:"input,omitempty"`
	Output        string                 `json:"output,omitempty"`
	Status        Status                 `json:"status"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

func (e OperationEvent) Category() EventCategory { return CategoryOperation }
func (e OperationEvent) Base() EventBase         { return e.EventBase }

// Severity is the log-like level of a SystemEvent.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SystemEvent carries broker- or agent-originated diagnostics. IsFallback
// is true when the event was synthesised because a raw payload matched no
// known dialect shape (§3 "Event fidelity" invariant: nothing is
// silently dropped).
type SystemEvent struct {
	EventBase
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	IsFallback bool     `json:"is_fallback"`
}

func (e SystemEvent) Category() EventCategory { return CategorySystem }
func (e SystemEvent) Base() EventBase         { return e.EventBase }

// NewFallbackEvent builds the System event a parser emits for a raw
// payload it does not recognise, per §4.2's "anything unrecognised"
// rule. severity and message are read from the raw map when present; a
// non-empty message argument overrides the raw message. The result
// always has IsFallback set.
func NewFallbackEvent(source AgentKind, raw map[string]interface{}, message string) SystemEvent {
	eventType, _ := raw["type"].(string)
	if eventType == "" {
		eventType = "unknown"
	}
	severity := SeverityDebug
	if s, ok := raw["severity"].(string); ok {
		switch Severity(s) {
		case SeverityDebug, SeverityInfo, SeverityWarning, SeverityError:
			severity = Severity(s)
		}
	}
	if message == "" {
		if m, ok := raw["message"].(string); ok {
			message = m
		} else {
			message = fmt.Sprintf("Unknown event type: %s", eventType)
		}
	}

	rawJSON, _ := json.Marshal(raw)
	return SystemEvent{
		EventBase: EventBase{
			EventID:   NewEventID(source, eventType),
			Timestamp: time.Now(),
			Source:    source,
			Raw:       rawJSON,
		},
		Severity:   severity,
		Message:    message,
		IsFallback: true,
	}
}

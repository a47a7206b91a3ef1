package agentparser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/agentbroker/pkg/types"
)

// Parser is the small capability set every agent-specific parser
// implements (§4.2, §9): turn one raw JSONL object into zero, one, or
// many UnifiedEvents, and expose whatever session id it has extracted
// so far.
type Parser interface {
	Parse(raw map[string]interface{}) []types.UnifiedEvent
	SessionID() string
}

// New constructs a fresh, stateful parser for kind. Each run must use
// its own parser instance — the cached operation-id/name maps are not
// safe to share across concurrent runs.
func New(kind types.AgentKind) Parser {
	switch kind {
	case types.AgentClaude:
		return newClaudeParser()
	case types.AgentCodex:
		return newCodexParser()
	case types.AgentGemini:
		return newGeminiParser()
	case types.AgentOpencode:
		return newOpencodeParser()
	default:
		return newGenericParser(kind)
	}
}

// --- shared helpers -------------------------------------------------

func rawJSON(data map[string]interface{}) json.RawMessage {
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]interface{}); ok {
			return mm
		}
	}
	return nil
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getFloat(m map[string]interface{}, key string) (float64, bool) {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func getInt(m map[string]interface{}, key string) int {
	f, _ := getFloat(m, key)
	return int(f)
}

func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func statusOf(s string) types.Status {
	switch strings.ToLower(s) {
	case "success", "completed", "ok":
		return types.StatusSuccess
	case "failed", "error":
		return types.StatusFailed
	case "running", "in_progress":
		return types.StatusRunning
	case "pending":
		return types.StatusPending
	default:
		return types.StatusSuccess
	}
}

func fallback(kind types.AgentKind, data map[string]interface{}) types.UnifiedEvent {
	return types.NewFallbackEvent(kind, data, "")
}

func baseFor(kind types.AgentKind, hint, sessionID string, data map[string]interface{}) types.EventBase {
	return types.EventBase{
		EventID:   types.NewEventID(kind, hint),
		Timestamp: time.Now(),
		Source:    kind,
		SessionID: sessionID,
		Raw:       rawJSON(data),
	}
}

// classifyOperation applies §4.2's "Operation classification policy":
// name pattern decides command/file/search/todo/mcp/tool.
func classifyOperation(name string) types.OperationType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "mcp__") || strings.HasPrefix(lower, "mcp_") || strings.Contains(lower, "/"):
		return types.OperationMCP
	case lower == "bash" || strings.Contains(lower, "shell"):
		return types.OperationCommand
	case strings.Contains(lower, "edit") || strings.Contains(lower, "write") && !strings.Contains(lower, "todo"):
		return types.OperationFile
	case strings.Contains(lower, "search"):
		return types.OperationSearch
	case strings.Contains(lower, "todo"):
		return types.OperationTodo
	default:
		return types.OperationTool
	}
}

// genericParser is used for any AgentKind with no dedicated dialect —
// additive per §3, every raw line becomes a fallback System event so
// nothing is silently dropped.
type genericParser struct {
	kind      types.AgentKind
	sessionID string
}

func newGenericParser(kind types.AgentKind) *genericParser {
	return &genericParser{kind: kind}
}

func (p *genericParser) SessionID() string { return p.sessionID }

func (p *genericParser) Parse(raw map[string]interface{}) []types.UnifiedEvent {
	return []types.UnifiedEvent{fallback(p.kind, raw)}
}

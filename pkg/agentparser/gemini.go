package agentparser

import (
	"github.com/cuemby/agentbroker/pkg/types"
)

// geminiParser mirrors shared/parsers/gemini.py: message content lives
// under "content" (not "text"), tool calls under "tool_name"/"parameters",
// and deltas are signalled by an explicit boolean "delta" flag.
type geminiParser struct {
	sessionID string
	model     string
	toolNames map[string]string
}

func newGeminiParser() *geminiParser {
	return &geminiParser{toolNames: make(map[string]string)}
}

func (p *geminiParser) SessionID() string { return p.sessionID }

func (p *geminiParser) Parse(data map[string]interface{}) []types.UnifiedEvent {
	switch str(data, "type") {
	case "init":
		return p.parseInit(data)
	case "message":
		return p.parseMessage(data)
	case "tool_use":
		return p.parseToolUse(data)
	case "tool_result":
		return p.parseToolResult(data)
	case "error":
		return p.parseError(data)
	case "result":
		return p.parseResultEnd(data)
	default:
		return []types.UnifiedEvent{fallback(types.AgentGemini, data)}
	}
}

func (p *geminiParser) parseInit(data map[string]interface{}) []types.UnifiedEvent {
	p.sessionID = str(data, "session_id")
	p.model = str(data, "model")
	return []types.UnifiedEvent{types.LifecycleEvent{
		EventBase:     baseFor(types.AgentGemini, "init", p.sessionID, data),
		LifecycleType: types.LifecycleSessionStart,
		Status:        types.StatusSuccess,
		Model:         p.model,
	}}
}

func (p *geminiParser) parseMessage(data map[string]interface{}) []types.UnifiedEvent {
	role := types.RoleAssistant
	if str(data, "role") == "user" {
		role = types.RoleUser
	}
	return []types.UnifiedEvent{types.MessageEvent{
		EventBase:   baseFor(types.AgentGemini, "message_"+string(role), p.sessionID, data),
		ContentType: types.ContentText,
		Role:        role,
		Text:        str(data, "content"),
		IsDelta:     getBool(data, "delta"),
	}}
}

func (p *geminiParser) parseToolUse(data map[string]interface{}) []types.UnifiedEvent {
	toolID := str(data, "tool_id")
	name := str(data, "tool_name")
	if name == "" {
		name = "unknown"
	}
	if toolID != "" {
		p.toolNames[toolID] = name
	}
	params := getMap(data, "parameters")

	return []types.UnifiedEvent{types.OperationEvent{
		EventBase:     baseFor(types.AgentGemini, "tool_"+name, p.sessionID, data),
		OperationType: classifyOperation(name),
		Name:          name,
		OperationID:   toolID,
		Input:         prettyJSON(params),
		Status:        types.StatusRunning,
		Metadata:      map[string]interface{}{"parameters": params},
	}}
}

func (p *geminiParser) parseToolResult(data map[string]interface{}) []types.UnifiedEvent {
	toolID := str(data, "tool_id")
	name := p.toolNames[toolID]
	if name == "" {
		name = "unknown"
	}

	status := types.StatusSuccess
	var output string
	errVal, hasErr := data["error"]
	if str(data, "status") == "error" || (hasErr && errVal != nil) {
		status = types.StatusFailed
		switch e := errVal.(type) {
		case map[string]interface{}:
			output = str(e, "message")
		case string:
			output = e
		}
		if output == "" {
			output = str(data, "output")
		}
	} else {
		output = str(data, "output")
	}

	return []types.UnifiedEvent{types.OperationEvent{
		EventBase:     baseFor(types.AgentGemini, "result_"+name, p.sessionID, data),
		OperationType: classifyOperation(name),
		Name:          name,
		OperationID:   toolID,
		Output:        output,
		Status:        status,
	}}
}

func (p *geminiParser) parseError(data map[string]interface{}) []types.UnifiedEvent {
	severity := types.SeverityError
	if str(data, "severity") == "warning" {
		severity = types.SeverityWarning
	}
	message := str(data, "message")
	if message == "" {
		message = "Unknown error"
	}
	return []types.UnifiedEvent{types.SystemEvent{
		EventBase: baseFor(types.AgentGemini, "error", p.sessionID, data),
		Severity:  severity,
		Message:   message,
	}}
}

func (p *geminiParser) parseResultEnd(data map[string]interface{}) []types.UnifiedEvent {
	status := types.StatusSuccess
	errVal, hasErr := data["error"]
	if str(data, "status") == "error" || (hasErr && errVal != nil) {
		status = types.StatusFailed
	}

	stats := map[string]interface{}{}
	if s := getMap(data, "stats"); s != nil {
		for _, key := range []string{"total_tokens", "input_tokens", "output_tokens", "duration_ms", "tool_calls"} {
			if v, ok := s[key]; ok {
				stats[key] = v
			}
		}
	}

	return []types.UnifiedEvent{types.LifecycleEvent{
		EventBase:     baseFor(types.AgentGemini, "result", p.sessionID, data),
		LifecycleType: types.LifecycleSessionEnd,
		Status:        status,
		Model:         p.model,
		Stats:         stats,
	}}
}

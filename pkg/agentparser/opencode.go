package agentparser

import (
	"github.com/cuemby/agentbroker/pkg/types"
)

// opencodeParser mirrors shared/parsers/opencode.py: every event nests
// its payload under "part" (tool_use, text) with state/status fields
// one level deeper, and "sessionID" is picked up once and latched —
// the same accumulate-first-non-empty-value rule the Python parser uses.
type opencodeParser struct {
	sessionID string
}

func newOpencodeParser() *opencodeParser {
	return &opencodeParser{}
}

func (p *opencodeParser) SessionID() string { return p.sessionID }

func (p *opencodeParser) Parse(data map[string]interface{}) []types.UnifiedEvent {
	if sid := str(data, "sessionID"); sid != "" && p.sessionID == "" {
		p.sessionID = sid
	}

	switch str(data, "type") {
	case "tool_use":
		return p.parseToolUse(data)
	case "step_start":
		return []types.UnifiedEvent{types.LifecycleEvent{
			EventBase:     baseFor(types.AgentOpencode, "step_start", p.sessionID, data),
			LifecycleType: types.LifecycleTurnStart,
			Status:        types.StatusRunning,
		}}
	case "step_finish":
		return []types.UnifiedEvent{types.LifecycleEvent{
			EventBase:     baseFor(types.AgentOpencode, "step_finish", p.sessionID, data),
			LifecycleType: types.LifecycleTurnEnd,
			Status:        types.StatusSuccess,
		}}
	case "text":
		return p.parseText(data)
	case "error":
		return p.parseError(data)
	default:
		return []types.UnifiedEvent{fallback(types.AgentOpencode, data)}
	}
}

func (p *opencodeParser) parseToolUse(data map[string]interface{}) []types.UnifiedEvent {
	part := getMap(data, "part")
	name := str(part, "tool")
	if name == "" {
		name = "unknown"
	}
	state := getMap(part, "state")

	status := types.StatusSuccess
	switch str(state, "status") {
	case "running":
		status = types.StatusRunning
	case "failed", "error":
		status = types.StatusFailed
	case "", "completed":
		status = types.StatusSuccess
	}

	output := str(state, "output")
	if output == "" {
		output = str(state, "title")
	}

	var metadata map[string]interface{}
	if state != nil {
		metadata = map[string]interface{}{"state": state, "title": str(state, "title")}
	}

	return []types.UnifiedEvent{types.OperationEvent{
		EventBase:     baseFor(types.AgentOpencode, "tool_"+name, p.sessionID, data),
		OperationType: classifyOperation(name),
		Name:          name,
		Input:         prettyJSON(state["input"]),
		Output:        output,
		Status:        status,
		Metadata:      metadata,
	}}
}

func (p *opencodeParser) parseText(data map[string]interface{}) []types.UnifiedEvent {
	part := getMap(data, "part")
	timing := getMap(part, "time")
	isDelta := str(timing, "end") == ""
	return []types.UnifiedEvent{types.MessageEvent{
		EventBase:   baseFor(types.AgentOpencode, "text", p.sessionID, data),
		ContentType: types.ContentText,
		Role:        types.RoleAssistant,
		Text:        str(part, "text"),
		IsDelta:     isDelta,
	}}
}

func (p *opencodeParser) parseError(data map[string]interface{}) []types.UnifiedEvent {
	message := "Unknown error"
	if errObj := getMap(data, "error"); errObj != nil {
		if m := str(errObj, "message"); m != "" {
			message = m
		} else if n := str(errObj, "name"); n != "" {
			message = n
		}
		if nested := getMap(errObj, "data"); nested != nil {
			if m := str(nested, "message"); m != "" {
				message = m
			}
		}
	}
	return []types.UnifiedEvent{types.SystemEvent{
		EventBase: baseFor(types.AgentOpencode, "error", p.sessionID, data),
		Severity:  types.SeverityError,
		Message:   message,
	}}
}

package agentparser

import "github.com/cuemby/agentbroker/pkg/types"

// claudeParser mirrors shared/parsers/claude.py: dispatch on the
// (type, subtype) pair for "system"/"result" events and on content-block
// type for "assistant"/"user" messages.
type claudeParser struct {
	sessionID string
	model     string
	toolNames map[string]string
}

func newClaudeParser() *claudeParser {
	return &claudeParser{toolNames: make(map[string]string)}
}

func (p *claudeParser) SessionID() string { return p.sessionID }

func (p *claudeParser) Parse(data map[string]interface{}) []types.UnifiedEvent {
	switch str(data, "type") {
	case "system":
		if str(data, "subtype") == "init" {
			return p.parseInit(data)
		}
	case "assistant":
		return p.parseAssistant(data)
	case "user":
		return p.parseUser(data)
	case "result":
		return p.parseResult(data)
	}
	return []types.UnifiedEvent{fallback(types.AgentClaude, data)}
}

func (p *claudeParser) parseInit(data map[string]interface{}) []types.UnifiedEvent {
	if sid := str(data, "session_id"); sid != "" {
		p.sessionID = sid
	}
	p.model = str(data, "model")

	stats := map[string]interface{}{
		"cwd":                str(data, "cwd"),
		"claude_code_version": str(data, "claude_code_version"),
	}
	if tools, ok := data["tools"].([]interface{}); ok {
		stats["tools_count"] = len(tools)
	}
	if servers, ok := data["mcp_servers"].([]interface{}); ok {
		connected := 0
		for _, s := range servers {
			if sm, ok := s.(map[string]interface{}); ok && str(sm, "status") == "connected" {
				connected++
			}
		}
		stats["mcp_servers"] = connected
	}

	return []types.UnifiedEvent{types.LifecycleEvent{
		EventBase:     baseFor(types.AgentClaude, "init", p.sessionID, data),
		LifecycleType: types.LifecycleSessionStart,
		Status:        types.StatusSuccess,
		Model:         p.model,
		Stats:         stats,
	}}
}

func (p *claudeParser) parseAssistant(data map[string]interface{}) []types.UnifiedEvent {
	message := getMap(data, "message")
	content, _ := message["content"].([]interface{})
	var events []types.UnifiedEvent

	for _, raw := range content {
		block, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch str(block, "type") {
		case "thinking":
			events = append(events, types.MessageEvent{
				EventBase:   baseFor(types.AgentClaude, "thinking", p.sessionID, data),
				ContentType: types.ContentReasoning,
				Role:        types.RoleAssistant,
				Text:        str(block, "thinking"),
				IsDelta:     true,
			})
		case "text":
			events = append(events, types.MessageEvent{
				EventBase:   baseFor(types.AgentClaude, "text", p.sessionID, data),
				ContentType: types.ContentText,
				Role:        types.RoleAssistant,
				Text:        str(block, "text"),
				IsDelta:     true,
			})
		case "tool_use":
			toolID := str(block, "id")
			toolName := str(block, "name")
			if toolID != "" {
				p.toolNames[toolID] = toolName
			}
			events = append(events, types.OperationEvent{
				EventBase:     baseFor(types.AgentClaude, "tool_"+toolName, p.sessionID, data),
				OperationType: classifyOperation(toolName),
				Name:          toolName,
				OperationID:   toolID,
				Input:         prettyJSON(block["input"]),
				Status:        types.StatusRunning,
			})
		}
	}

	if len(events) == 0 {
		return []types.UnifiedEvent{fallback(types.AgentClaude, data)}
	}
	return events
}

func (p *claudeParser) parseUser(data map[string]interface{}) []types.UnifiedEvent {
	message := getMap(data, "message")
	content, _ := message["content"].([]interface{})
	var events []types.UnifiedEvent

	for _, raw := range content {
		block, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch str(block, "type") {
		case "tool_result":
			toolID := str(block, "tool_use_id")
			name := p.toolNames[toolID]
			status := types.StatusSuccess
			if getBool(block, "is_error") {
				status = types.StatusFailed
			}
			events = append(events, types.OperationEvent{
				EventBase:     baseFor(types.AgentClaude, "result_"+name, p.sessionID, data),
				OperationType: classifyOperation(name),
				Name:          name,
				OperationID:   toolID,
				Output:        contentToString(block["content"]),
				Status:        status,
			})
		case "text":
			events = append(events, types.MessageEvent{
				EventBase:   baseFor(types.AgentClaude, "user_text", p.sessionID, data),
				ContentType: types.ContentText,
				Role:        types.RoleUser,
				Text:        str(block, "text"),
			})
		}
	}

	if len(events) == 0 {
		return []types.UnifiedEvent{fallback(types.AgentClaude, data)}
	}
	return events
}

func (p *claudeParser) parseResult(data map[string]interface{}) []types.UnifiedEvent {
	status := types.StatusSuccess
	if getBool(data, "is_error") || str(data, "subtype") == "error" {
		status = types.StatusFailed
	}

	stats := map[string]interface{}{}
	if v, ok := getFloat(data, "duration_ms"); ok {
		stats["duration_ms"] = v
	}
	if v, ok := getFloat(data, "duration_api_ms"); ok {
		stats["duration_api_ms"] = v
	}
	if v, ok := getFloat(data, "num_turns"); ok {
		stats["num_turns"] = v
	}
	if v, ok := getFloat(data, "total_cost_usd"); ok {
		stats["total_cost_usd"] = v
	}
	if usage := getMap(data, "usage"); usage != nil {
		stats["usage"] = usage
	}

	return []types.UnifiedEvent{types.LifecycleEvent{
		EventBase:     baseFor(types.AgentClaude, "result", p.sessionID, data),
		LifecycleType: types.LifecycleSessionEnd,
		Status:        status,
		Stats:         stats,
	}}
}

func contentToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		var out string
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok && str(m, "type") == "text" {
				out += str(m, "text")
			}
		}
		return out
	default:
		if v == nil {
			return ""
		}
		return prettyJSON(v)
	}
}

package agentparser

import (
	"fmt"
	"strings"

	"github.com/cuemby/agentbroker/pkg/types"
)

// codexParser mirrors shared/parsers/codex.py: dispatch on the top-level
// "type" field, with item.* events further dispatched on the nested
// item.type and correlated via a call-id/item-id cache.
type codexParser struct {
	sessionID     string
	functionNames map[string]string
}

func newCodexParser() *codexParser {
	return &codexParser{functionNames: make(map[string]string)}
}

func (p *codexParser) SessionID() string { return p.sessionID }

func (p *codexParser) Parse(data map[string]interface{}) []types.UnifiedEvent {
	switch str(data, "type") {
	case "thread.started":
		p.sessionID = str(data, "thread_id")
		return []types.UnifiedEvent{types.LifecycleEvent{
			EventBase:     baseFor(types.AgentCodex, "thread_started", p.sessionID, data),
			LifecycleType: types.LifecycleSessionStart,
			Status:        types.StatusSuccess,
		}}
	case "turn.started":
		return []types.UnifiedEvent{types.LifecycleEvent{
			EventBase:     baseFor(types.AgentCodex, "turn_started", p.sessionID, data),
			LifecycleType: types.LifecycleTurnStart,
			Status:        types.StatusRunning,
		}}
	case "turn.completed":
		stats := map[string]interface{}{}
		if usage := getMap(data, "usage"); usage != nil {
			stats["input_tokens"] = getInt(usage, "input_tokens")
			stats["cached_input_tokens"] = getInt(usage, "cached_input_tokens")
			stats["output_tokens"] = getInt(usage, "output_tokens")
		}
		return []types.UnifiedEvent{types.LifecycleEvent{
			EventBase:     baseFor(types.AgentCodex, "turn_completed", p.sessionID, data),
			LifecycleType: types.LifecycleTurnEnd,
			Status:        types.StatusSuccess,
			Stats:         stats,
		}}
	case "turn.failed":
		msg := "turn failed"
		if errm := getMap(data, "error"); errm != nil {
			if m := str(errm, "message"); m != "" {
				msg = m
			}
		}
		return []types.UnifiedEvent{types.LifecycleEvent{
			EventBase:     baseFor(types.AgentCodex, "turn_failed", p.sessionID, data),
			LifecycleType: types.LifecycleTurnEnd,
			Status:        types.StatusFailed,
			Stats:         map[string]interface{}{"error": msg},
		}}
	case "error":
		return []types.UnifiedEvent{types.SystemEvent{
			EventBase: baseFor(types.AgentCodex, "error", p.sessionID, data),
			Severity:  types.SeverityError,
			Message:   str(data, "message"),
		}}
	case "item.started", "item.updated", "item.completed":
		return p.parseItem(data)
	default:
		return []types.UnifiedEvent{fallback(types.AgentCodex, data)}
	}
}

func (p *codexParser) parseItem(data map[string]interface{}) []types.UnifiedEvent {
	item := getMap(data, "item")
	if item == nil {
		return []types.UnifiedEvent{fallback(types.AgentCodex, data)}
	}
	itemType := str(item, "type")
	completed := str(data, "type") == "item.completed"

	switch itemType {
	case "error":
		return []types.UnifiedEvent{types.SystemEvent{
			EventBase: baseFor(types.AgentCodex, "item_error", p.sessionID, data),
			Severity:  types.SeverityError,
			Message:   str(item, "message"),
		}}
	case "agent_message":
		return []types.UnifiedEvent{types.MessageEvent{
			EventBase:   baseFor(types.AgentCodex, "agent_message", p.sessionID, data),
			ContentType: types.ContentText,
			Role:        types.RoleAssistant,
			Text:        str(item, "text"),
			IsDelta:     !completed,
		}}
	case "reasoning":
		return []types.UnifiedEvent{types.MessageEvent{
			EventBase:   baseFor(types.AgentCodex, "reasoning", p.sessionID, data),
			ContentType: types.ContentReasoning,
			Role:        types.RoleAssistant,
			Text:        str(item, "text"),
			IsDelta:     !completed,
		}}
	case "command_execution":
		status := types.StatusPending
		if completed {
			status = types.StatusSuccess
			if getInt(item, "exit_code") != 0 {
				status = types.StatusFailed
			}
		} else if str(item, "status") == "in_progress" {
			status = types.StatusRunning
		}
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "command", p.sessionID, data),
			OperationType: types.OperationCommand,
			Name:          str(item, "command"),
			OperationID:   str(item, "id"),
			Output:        str(item, "aggregated_output"),
			Status:        status,
			Metadata: map[string]interface{}{
				"exit_code": getInt(item, "exit_code"),
				"item_id":   str(item, "id"),
			},
		}}
	case "file_change":
		changes, _ := item["changes"].([]interface{})
		summary := summarizeChanges(changes, 10)
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "file_change", p.sessionID, data),
			OperationType: types.OperationFile,
			Name:          "file_change",
			OperationID:   str(item, "id"),
			Output:        summary,
			Status:        types.StatusSuccess,
			Metadata: map[string]interface{}{
				"changes": changes,
				"count":   len(changes),
			},
		}}
	case "function_call":
		callID := str(item, "call_id")
		name := str(item, "name")
		if callID != "" {
			p.functionNames[callID] = name
		}
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "function_"+name, p.sessionID, data),
			OperationType: classifyOperation(name),
			Name:          name,
			OperationID:   callID,
			Input:         prettyJSON(item["arguments"]),
			Status:        types.StatusRunning,
		}}
	case "function_call_output":
		callID := str(item, "call_id")
		name := p.functionNames[callID]
		output := str(item, "output")
		status := types.StatusSuccess
		if strings.Contains(strings.ToLower(output), "error") {
			status = types.StatusFailed
		}
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "function_output_"+name, p.sessionID, data),
			OperationType: classifyOperation(name),
			Name:          name,
			OperationID:   callID,
			Output:        output,
			Status:        status,
		}}
	case "mcp_tool_call":
		server := str(item, "server")
		tool := str(item, "tool")
		name := fmt.Sprintf("%s/%s", server, tool)
		status := types.StatusRunning
		var output string
		if errm := getMap(item, "error"); errm != nil {
			status = types.StatusFailed
			output = str(errm, "message")
		} else if result := getMap(item, "result"); result != nil {
			if completed {
				status = types.StatusSuccess
			}
			if content, ok := result["content"].([]interface{}); ok {
				output = summarizeTextBlocks(content, 5)
			} else {
				output = prettyJSON(result)
			}
		}
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "mcp_"+tool, p.sessionID, data),
			OperationType: types.OperationMCP,
			Name:          name,
			OperationID:   str(item, "id"),
			Output:        output,
			Status:        status,
		}}
	case "web_search":
		status := types.StatusRunning
		if completed {
			status = types.StatusSuccess
		}
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "web_search", p.sessionID, data),
			OperationType: types.OperationSearch,
			Name:          "web_search",
			OperationID:   str(item, "id"),
			Input:         str(item, "query"),
			Status:        status,
		}}
	case "todo_list":
		todos, _ := item["items"].([]interface{})
		done := 0
		for _, t := range todos {
			if m, ok := t.(map[string]interface{}); ok && getBool(m, "completed") {
				done++
			}
		}
		status := types.StatusRunning
		if completed {
			status = types.StatusSuccess
		}
		return []types.UnifiedEvent{types.OperationEvent{
			EventBase:     baseFor(types.AgentCodex, "todo_list", p.sessionID, data),
			OperationType: types.OperationTodo,
			Name:          fmt.Sprintf("TODO %d/%d", done, len(todos)),
			OperationID:   str(item, "id"),
			Output:        summarizeTodos(todos, 30),
			Status:        status,
			Metadata: map[string]interface{}{
				"items": todos,
				"done":  done,
				"total": len(todos),
			},
		}}
	default:
		return []types.UnifiedEvent{types.NewFallbackEvent(types.AgentCodex, data, fmt.Sprintf("Unknown item type: %s", itemType))}
	}
}

func summarizeChanges(changes []interface{}, limit int) string {
	var lines []string
	for i, c := range changes {
		if i >= limit {
			break
		}
		if m, ok := c.(map[string]interface{}); ok {
			lines = append(lines, fmt.Sprintf("%s: %s", str(m, "kind"), str(m, "path")))
		}
	}
	return strings.Join(lines, "\n")
}

func summarizeTextBlocks(blocks []interface{}, limit int) string {
	var lines []string
	for i, b := range blocks {
		if i >= limit {
			break
		}
		if m, ok := b.(map[string]interface{}); ok && str(m, "type") == "text" {
			lines = append(lines, str(m, "text"))
		}
	}
	return strings.Join(lines, "\n")
}

func summarizeTodos(todos []interface{}, limit int) string {
	var lines []string
	for i, t := range todos {
		if i >= limit {
			break
		}
		m, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		mark := "○"
		if getBool(m, "completed") {
			mark = "✓"
		}
		lines = append(lines, fmt.Sprintf("%s %s", mark, str(m, "text")))
	}
	return strings.Join(lines, "\n")
}

package agentparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agentbroker/pkg/types"
)

func TestNewSelectsParserPerKind(t *testing.T) {
	for _, kind := range types.AgentKinds() {
		p := New(kind)
		require.NotNil(t, p)
	}
	assert.IsType(t, &genericParser{}, New(types.AgentKind("unknown")))
}

func TestClassifyOperation(t *testing.T) {
	cases := map[string]types.OperationType{
		"Bash":             types.OperationCommand,
		"run_shell_command": types.OperationCommand,
		"Edit":             types.OperationFile,
		"Write":            types.OperationFile,
		"Grep":             types.OperationTool,
		"TodoWrite":        types.OperationTodo,
		"mcp__github__search": types.OperationMCP,
		"WebFetch":         types.OperationTool,
	}
	for name, want := range cases {
		assert.Equal(t, want, classifyOperation(name), name)
	}
}

func TestClaudeParserInitAssistantUserResult(t *testing.T) {
	p := New(types.AgentClaude)

	init := map[string]interface{}{
		"type": "system", "subtype": "init",
		"session_id": "sess-1", "model": "claude-opus",
		"cwd": "/work", "claude_code_version": "1.0.0",
		"tools": []interface{}{"Bash", "Edit"},
		"mcp_servers": []interface{}{
			map[string]interface{}{"status": "connected"},
			map[string]interface{}{"status": "failed"},
		},
	}
	events := p.Parse(init)
	require.Len(t, events, 1)
	lc, ok := events[0].(types.LifecycleEvent)
	require.True(t, ok)
	assert.Equal(t, types.LifecycleSessionStart, lc.LifecycleType)
	assert.Equal(t, "sess-1", p.SessionID())
	assert.Equal(t, 2, lc.Stats["tools_count"])
	assert.Equal(t, 1, lc.Stats["mcp_servers"])

	assistant := map[string]interface{}{
		"type": "assistant",
		"message": map[string]interface{}{
			"content": []interface{}{
				map[string]interface{}{"type": "text", "text": "thinking out loud"},
				map[string]interface{}{"type": "tool_use", "id": "tool-1", "name": "Bash", "input": map[string]interface{}{"command": "ls"}},
			},
		},
	}
	events = p.Parse(assistant)
	require.Len(t, events, 2)
	op, ok := events[1].(types.OperationEvent)
	require.True(t, ok)
	assert.Equal(t, types.OperationCommand, op.OperationType)
	assert.Equal(t, types.StatusRunning, op.Status)

	user := map[string]interface{}{
		"type": "user",
		"message": map[string]interface{}{
			"content": []interface{}{
				map[string]interface{}{"type": "tool_result", "tool_use_id": "tool-1", "content": "file1\nfile2", "is_error": false},
			},
		},
	}
	events = p.Parse(user)
	require.Len(t, events, 1)
	resultOp, ok := events[0].(types.OperationEvent)
	require.True(t, ok)
	assert.Equal(t, "Bash", resultOp.Name)
	assert.Equal(t, types.StatusSuccess, resultOp.Status)

	result := map[string]interface{}{
		"type": "result", "is_error": false,
		"duration_ms": 1200.0, "num_turns": 3.0, "total_cost_usd": 0.05,
	}
	events = p.Parse(result)
	require.Len(t, events, 1)
	end, ok := events[0].(types.LifecycleEvent)
	require.True(t, ok)
	assert.Equal(t, types.LifecycleSessionEnd, end.LifecycleType)
	assert.Equal(t, types.StatusSuccess, end.Status)
}

func TestCodexParserItemLifecycle(t *testing.T) {
	p := New(types.AgentCodex)

	started := map[string]interface{}{"type": "thread.started", "thread_id": "thread-9"}
	events := p.Parse(started)
	require.Len(t, events, 1)
	assert.Equal(t, "thread-9", p.SessionID())

	call := map[string]interface{}{
		"type": "item.started",
		"item": map[string]interface{}{
			"type": "function_call", "call_id": "call-1", "name": "search_files",
			"arguments": map[string]interface{}{"query": "TODO"},
		},
	}
	events = p.Parse(call)
	require.Len(t, events, 1)
	op := events[0].(types.OperationEvent)
	assert.Equal(t, types.StatusRunning, op.Status)

	output := map[string]interface{}{
		"type": "item.completed",
		"item": map[string]interface{}{
			"type": "function_call_output", "call_id": "call-1", "output": "3 matches found",
		},
	}
	events = p.Parse(output)
	require.Len(t, events, 1)
	resultOp := events[0].(types.OperationEvent)
	assert.Equal(t, "search_files", resultOp.Name)
	assert.Equal(t, types.StatusSuccess, resultOp.Status)

	cmd := map[string]interface{}{
		"type": "item.completed",
		"item": map[string]interface{}{
			"type": "command_execution", "id": "cmd-1", "command": "go test ./...",
			"exit_code": 1.0, "aggregated_output": "FAIL",
		},
	}
	events = p.Parse(cmd)
	require.Len(t, events, 1)
	cmdOp := events[0].(types.OperationEvent)
	assert.Equal(t, types.StatusFailed, cmdOp.Status)
}

func TestGeminiParserDeltaMessages(t *testing.T) {
	p := New(types.AgentGemini)

	init := map[string]interface{}{"type": "init", "session_id": "g-1", "model": "gemini-pro"}
	p.Parse(init)
	assert.Equal(t, "g-1", p.SessionID())

	msg := map[string]interface{}{"type": "message", "role": "assistant", "content": "partial", "delta": true}
	events := p.Parse(msg)
	require.Len(t, events, 1)
	me := events[0].(types.MessageEvent)
	assert.True(t, me.IsDelta)

	toolUse := map[string]interface{}{"type": "tool_use", "tool_id": "t1", "tool_name": "Grep", "parameters": map[string]interface{}{"pattern": "foo"}}
	p.Parse(toolUse)
	toolResult := map[string]interface{}{"type": "tool_result", "tool_id": "t1", "output": "match found"}
	events = p.Parse(toolResult)
	op := events[0].(types.OperationEvent)
	assert.Equal(t, "Grep", op.Name)
	assert.Equal(t, types.StatusSuccess, op.Status)
}

func TestOpencodeParserStatusFromState(t *testing.T) {
	p := New(types.AgentOpencode)

	toolUse := map[string]interface{}{
		"type": "tool_use", "sessionID": "oc-sess-1",
		"part": map[string]interface{}{
			"tool": "bash",
			"state": map[string]interface{}{
				"status": "completed", "output": "a.go\nb.go",
				"input": map[string]interface{}{"command": "ls"},
			},
		},
	}
	events := p.Parse(toolUse)
	require.Len(t, events, 1)
	op := events[0].(types.OperationEvent)
	assert.Equal(t, types.OperationCommand, op.OperationType)
	assert.Equal(t, types.StatusSuccess, op.Status)
	assert.Equal(t, "oc-sess-1", p.SessionID())

	text := map[string]interface{}{"type": "text", "part": map[string]interface{}{"text": "partial answer"}}
	events = p.Parse(text)
	me := events[0].(types.MessageEvent)
	assert.True(t, me.IsDelta)

	done := map[string]interface{}{
		"type": "text",
		"part": map[string]interface{}{"text": "final answer", "time": map[string]interface{}{"end": "123"}},
	}
	events = p.Parse(done)
	me = events[0].(types.MessageEvent)
	assert.False(t, me.IsDelta)
}

func TestFallbackEventNotDropped(t *testing.T) {
	p := New(types.AgentKind("mystery"))
	events := p.Parse(map[string]interface{}{"type": "something_weird", "value": 1.0})
	require.Len(t, events, 1)
	sys, ok := events[0].(types.SystemEvent)
	require.True(t, ok)
	assert.True(t, sys.IsFallback)
}

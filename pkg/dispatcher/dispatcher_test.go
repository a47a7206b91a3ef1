package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agentbroker/pkg/config"
	"github.com/cuemby/agentbroker/pkg/events"
	"github.com/cuemby/agentbroker/pkg/invoker"
	"github.com/cuemby/agentbroker/pkg/process"
	"github.com/cuemby/agentbroker/pkg/registry"
	"github.com/cuemby/agentbroker/pkg/types"
)

func fixturePath(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return abs
}

func newTestDispatcher(t *testing.T, fixture string) *Dispatcher {
	cfg, err := config.Load("")
	require.NoError(t, err)

	d, err := New(cfg, registry.New(), events.NewBus(10, 0))
	require.NoError(t, err)

	execPath := fixturePath(t, fixture)
	d.NewInvoker = func(kind types.AgentKind) *invoker.Invoker {
		return &invoker.Invoker{Kind: kind, ExecPath: execPath, Runner: process.NewRunner()}
	}
	return d
}

func TestHandleHappyPathWritesTranscript(t *testing.T) {
	d := newTestDispatcher(t, "claude_fixture.sh")
	workspace := t.TempDir()
	savePath := filepath.Join(workspace, "handoff.md")

	reply, err := d.Handle(context.Background(), types.AgentClaude, map[string]interface{}{
		"prompt":    "describe a.go",
		"workspace": workspace,
		"save_file": "handoff.md",
		"task_note": "describe",
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "<answer>")
	assert.Contains(t, reply, "claude-sess-1")

	content, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<agent-output agent=\"claude\"")
	assert.Contains(t, string(content), "task_index=0")
}

func TestHandleMissingPromptReturnsErrorEnvelope(t *testing.T) {
	d := newTestDispatcher(t, "claude_fixture.sh")
	reply, err := d.Handle(context.Background(), types.AgentClaude, map[string]interface{}{
		"workspace": t.TempDir(),
		"save_file": "out.md",
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "<error>")
	assert.Contains(t, reply, "prompt")
}

func TestHandleMissingSaveFileReturnsErrorEnvelope(t *testing.T) {
	d := newTestDispatcher(t, "claude_fixture.sh")
	reply, err := d.Handle(context.Background(), types.AgentClaude, map[string]interface{}{
		"prompt":    "hi",
		"workspace": t.TempDir(),
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "<error>")
	assert.Contains(t, reply, "save_file")
}

func TestHandleUnknownToolIsDispatchError(t *testing.T) {
	d := newTestDispatcher(t, "claude_fixture.sh")
	delete(d.tools, types.AgentClaude)

	_, err := d.Handle(context.Background(), types.AgentClaude, map[string]interface{}{
		"prompt":    "hi",
		"workspace": t.TempDir(),
		"save_file": "out.md",
	})
	assert.Error(t, err)
}

func TestHandleAgentFailureStillWritesTranscript(t *testing.T) {
	d := newTestDispatcher(t, "nonzero_fixture.sh")
	workspace := t.TempDir()

	reply, err := d.Handle(context.Background(), types.AgentGemini, map[string]interface{}{
		"prompt":    "do something",
		"workspace": workspace,
		"save_file": "handoff.md",
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "<error>")

	content, err := os.ReadFile(filepath.Join(workspace, "handoff.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "status=\"error\"")
}

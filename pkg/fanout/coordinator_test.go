package fanout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agentbroker/pkg/events"
	"github.com/cuemby/agentbroker/pkg/invoker"
	"github.com/cuemby/agentbroker/pkg/process"
	"github.com/cuemby/agentbroker/pkg/types"
)

func fixturePath(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return abs
}

func newTestCoordinator(t *testing.T, fixture string) *Coordinator {
	c, err := New(events.NewBus(10, 0), []types.AgentKind{types.AgentClaude, types.AgentGemini})
	require.NoError(t, err)

	execPath := fixturePath(t, fixture)
	c.NewInvoker = func(kind types.AgentKind) *invoker.Invoker {
		return &invoker.Invoker{Kind: kind, ExecPath: execPath, Runner: process.NewRunner()}
	}
	return c
}

func TestHandleRunsAllTasksAndJoinsInOrder(t *testing.T) {
	c := newTestCoordinator(t, "claude_fixture.sh")
	workspace := t.TempDir()

	reply, err := c.Handle(context.Background(), types.AgentClaude, map[string]interface{}{
		"workspace":                workspace,
		"save_file":                "handoff.md",
		"parallel_prompts":         []interface{}{"task one", "task two", "task three"},
		"parallel_task_notes":      []interface{}{"t1", "t2", "t3"},
		"parallel_max_concurrency": float64(2),
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "Fan-out complete: 3 succeeded, 0 failed, 0 skipped")

	content, err := os.ReadFile(filepath.Join(workspace, "handoff.md"))
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "task_index=0")
	assert.Contains(t, text, "task_index=1")
	assert.Contains(t, text, "task_index=2")

	i0 := indexOf(text, "task_index=0")
	i1 := indexOf(text, "task_index=1")
	i2 := indexOf(text, "task_index=2")
	assert.Less(t, i0, i1)
	assert.Less(t, i1, i2)
}

func TestHandleFailFastSkipsQueuedTasks(t *testing.T) {
	c := newTestCoordinator(t, "nonzero_fixture.sh")
	workspace := t.TempDir()

	reply, err := c.Handle(context.Background(), types.AgentGemini, map[string]interface{}{
		"workspace":                workspace,
		"save_file":                "handoff.md",
		"parallel_prompts":         []interface{}{"a", "b", "c", "d"},
		"parallel_task_notes":      []interface{}{"a", "b", "c", "d"},
		"parallel_max_concurrency": float64(1),
		"parallel_fail_fast":       true,
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "Fan-out complete: 0 succeeded, 1 failed, 3 skipped")
}

func TestHandleValidatesMismatchedTaskNotes(t *testing.T) {
	c := newTestCoordinator(t, "claude_fixture.sh")
	reply, err := c.Handle(context.Background(), types.AgentClaude, map[string]interface{}{
		"workspace":           t.TempDir(),
		"save_file":           "handoff.md",
		"parallel_prompts":    []interface{}{"a", "b"},
		"parallel_task_notes": []interface{}{"only-one"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "<error>")
	assert.Contains(t, reply, "parallel_task_notes")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

package invoker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/agentbroker/pkg/process"
	"github.com/cuemby/agentbroker/pkg/types"
)

// fixturePath resolves testdata/<name> to an absolute path. The fixture
// scripts are spawned with Dir set to a scratch workspace, and exec.Cmd
// resolves a relative Path against Dir rather than the test binary's own
// working directory, so a bare "testdata/..." argv[0] would not be found.
func fixturePath(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return abs
}

func newTestInvoker(t *testing.T, kind types.AgentKind, fixture string) *Invoker {
	return &Invoker{
		Kind:     kind,
		ExecPath: fixturePath(t, fixture),
		Runner:   process.NewRunner(),
	}
}

func TestInvokerClaudeHappyPath(t *testing.T) {
	iv := newTestInvoker(t, types.AgentClaude, "claude_fixture.sh")
	params := types.ClaudeParams{CommonParams: types.CommonParams{
		Prompt:     "describe a.go",
		Workspace:  t.TempDir(),
		Permission: types.PermissionReadOnly,
	}}

	var events []types.UnifiedEvent
	result, err := iv.Stream(context.Background(), params, func(ev types.UnifiedEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "claude-sess-1", result.SessionID)
	assert.Equal(t, "Looking at a.go, it defines package a.", result.FinalAnswer)
	assert.NotEmpty(t, events)
	assert.Equal(t, 0, *result.Debug.ExitCode)
}

func TestInvokerCodexHappyPath(t *testing.T) {
	iv := newTestInvoker(t, types.AgentCodex, "codex_fixture.sh")
	params := types.CodexParams{CommonParams: types.CommonParams{
		Prompt:     "list files",
		Workspace:  t.TempDir(),
		Permission: types.PermissionWorkspaceWrite,
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "codex-sess-1", result.SessionID)
	assert.Equal(t, "The workspace has a.go and b.go.", result.FinalAnswer)
	assert.Equal(t, 1, result.Debug.ToolCallCount)
	assert.Equal(t, 50, result.Debug.InputTokens)
	assert.Equal(t, 30, result.Debug.OutputTokens)
}

func TestInvokerGeminiHappyPath(t *testing.T) {
	iv := newTestInvoker(t, types.AgentGemini, "gemini_fixture.sh")
	params := types.GeminiParams{CommonParams: types.CommonParams{
		Prompt:     "describe a.go",
		Workspace:  t.TempDir(),
		Permission: types.PermissionUnlimited,
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "gemini-sess-1", result.SessionID)
	assert.Equal(t, "a.go defines package a.", result.FinalAnswer)
	assert.Equal(t, 1, result.Debug.ToolCallCount)
	assert.Equal(t, 40, result.Debug.InputTokens)
	assert.Equal(t, 20, result.Debug.OutputTokens)
}

func TestInvokerOpencodeHappyPath(t *testing.T) {
	iv := newTestInvoker(t, types.AgentOpencode, "opencode_fixture.sh")
	params := types.OpencodeParams{CommonParams: types.CommonParams{
		Prompt:     "find go files",
		Workspace:  t.TempDir(),
		Permission: types.PermissionWorkspaceWrite,
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "oc-sess-1", result.SessionID)
	assert.Equal(t, "Found a.go and b.go.", result.FinalAnswer)
	assert.Equal(t, 1, result.Debug.ToolCallCount)
}

func TestInvokerFatalStderrTerminates(t *testing.T) {
	iv := newTestInvoker(t, types.AgentCodex, "fatal_fixture.sh")
	params := types.CodexParams{CommonParams: types.CommonParams{
		Prompt:     "do something",
		Workspace:  t.TempDir(),
		Permission: types.PermissionReadOnly,
	}}

	start := time.Now()
	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Less(t, time.Since(start), 4*time.Second, "fatal pattern should terminate the child well before its sleep ends")
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrorFatal, result.ErrorKind)
	assert.Contains(t, result.Error, "Invalid session identifier")
}

func TestInvokerNonZeroExit(t *testing.T) {
	iv := newTestInvoker(t, types.AgentGemini, "nonzero_fixture.sh")
	params := types.GeminiParams{CommonParams: types.CommonParams{
		Prompt:     "do something",
		Workspace:  t.TempDir(),
		Permission: types.PermissionReadOnly,
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrorExit, result.ErrorKind)
	assert.Equal(t, 3, *result.Debug.ExitCode)
}

func TestInvokerOpencodeExitZeroTraceback(t *testing.T) {
	iv := newTestInvoker(t, types.AgentOpencode, "opencode_exit0_traceback.sh")
	params := types.OpencodeParams{CommonParams: types.CommonParams{
		Prompt:     "do something",
		Workspace:  t.TempDir(),
		Permission: types.PermissionWorkspaceWrite,
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Success, "exit 0 with a stderr traceback must still be reported as a failure")
	assert.Equal(t, types.ErrorExit, result.ErrorKind)
	assert.Contains(t, result.Error, "RuntimeError")
	assert.Equal(t, 0, *result.Debug.ExitCode)
}

func TestInvokerValidatesWorkspace(t *testing.T) {
	iv := newTestInvoker(t, types.AgentClaude, "claude_fixture.sh")
	params := types.ClaudeParams{CommonParams: types.CommonParams{
		Prompt:    "hi",
		Workspace: filepath.Join(t.TempDir(), "does-not-exist"),
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrorValidation, result.ErrorKind)
}

func TestInvokerValidatesPrompt(t *testing.T) {
	iv := newTestInvoker(t, types.AgentClaude, "claude_fixture.sh")
	params := types.ClaudeParams{CommonParams: types.CommonParams{
		Workspace: t.TempDir(),
	}}

	result, err := iv.Execute(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrorValidation, result.ErrorKind)
}

func TestInvokerCancellation(t *testing.T) {
	iv := newTestInvoker(t, types.AgentCodex, "slow_fixture.sh")
	params := types.CodexParams{CommonParams: types.CommonParams{
		Prompt:     "do something",
		Workspace:  t.TempDir(),
		Permission: types.PermissionReadOnly,
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := iv.Execute(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, result.Cancelled)
	assert.Equal(t, types.ErrorCancelled, result.ErrorKind)
}

package invoker

import (
	"fmt"
	"path/filepath"

	"github.com/cuemby/agentbroker/pkg/types"
)

// usesStdinPrompt reports whether the agent's CLI reads the prompt from
// stdin (claude, codex) versus taking it as a positional argument
// (gemini, opencode). Grounded on each agent adapter's uses_stdin_prompt
// override in original_source's agents/*.py and shared/invokers/opencode.py.
func usesStdinPrompt(kind types.AgentKind) bool {
	switch kind {
	case types.AgentClaude, types.AgentCodex:
		return true
	default:
		return false
	}
}

// buildCommand constructs the argv for one agent invocation. execPath is
// the configured CLI binary (defaults to the agent's own name).
func buildCommand(execPath string, kind types.AgentKind, params types.Params) ([]string, error) {
	switch kind {
	case types.AgentClaude:
		p, ok := params.(types.ClaudeParams)
		if !ok {
			return nil, fmt.Errorf("invoker: claude requires ClaudeParams")
		}
		return buildClaudeCommand(execPath, p), nil
	case types.AgentCodex:
		p, ok := params.(types.CodexParams)
		if !ok {
			return nil, fmt.Errorf("invoker: codex requires CodexParams")
		}
		return buildCodexCommand(execPath, p), nil
	case types.AgentGemini:
		p, ok := params.(types.GeminiParams)
		if !ok {
			return nil, fmt.Errorf("invoker: gemini requires GeminiParams")
		}
		return buildGeminiCommand(execPath, p), nil
	case types.AgentOpencode:
		p, ok := params.(types.OpencodeParams)
		if !ok {
			return nil, fmt.Errorf("invoker: opencode requires OpencodeParams")
		}
		return buildOpencodeCommand(execPath, p), nil
	default:
		return nil, fmt.Errorf("invoker: unsupported agent kind %q", kind)
	}
}

// buildClaudeCommand mirrors agents/claude.py's ClaudeAdapter.build_command:
// non-interactive, streamed JSON, workspace added via --add-dir, permission
// mapped to --tools, session resumed via --resume.
func buildClaudeCommand(execPath string, p types.ClaudeParams) []string {
	cmd := []string{execPath, "-p", "--output-format", "stream-json", "--verbose"}

	workspace, _ := filepath.Abs(p.Workspace)
	cmd = append(cmd, "--add-dir", workspace)
	cmd = append(cmd, "--tools", p.Permission.SandboxArg(types.AgentClaude))

	if p.Model != "" {
		cmd = append(cmd, "--model", p.Model)
	}
	if p.SystemPrompt != "" {
		cmd = append(cmd, "--system-prompt", p.SystemPrompt)
	} else if p.AppendSystemPrompt != "" {
		cmd = append(cmd, "--append-system-prompt", p.AppendSystemPrompt)
	}
	if p.SessionID != "" {
		cmd = append(cmd, "--resume", p.SessionID)
	}
	return cmd
}

// buildCodexCommand mirrors agents/codex.py: "exec" subcommand, sandbox
// flag from permission, optional image attachments, "resume <id>" before
// the "--" prompt-via-stdin separator.
func buildCodexCommand(execPath string, p types.CodexParams) []string {
	cmd := []string{execPath, "exec"}

	workspace, _ := filepath.Abs(p.Workspace)
	cmd = append(cmd, "--cd", workspace)
	cmd = append(cmd, "--sandbox", p.Permission.SandboxArg(types.AgentCodex))
	cmd = append(cmd, "--skip-git-repo-check", "--json")

	if p.Model != "" {
		cmd = append(cmd, "--model", p.Model)
	}
	for _, img := range p.Image {
		abs, _ := filepath.Abs(img)
		cmd = append(cmd, "--image", abs)
	}
	if p.SessionID != "" {
		cmd = append(cmd, "resume", p.SessionID)
	}
	cmd = append(cmd, "--")
	return cmd
}

// buildGeminiCommand mirrors agents/gemini.py: sandbox is a bare on/off
// switch, and the prompt is a positional argument rather than stdin.
func buildGeminiCommand(execPath string, p types.GeminiParams) []string {
	cmd := []string{execPath, "-o", "stream-json"}

	workspace, _ := filepath.Abs(p.Workspace)
	cmd = append(cmd, "--include-directories", workspace)

	if p.Permission != types.PermissionUnlimited {
		cmd = append(cmd, "--sandbox")
	}
	if p.Model != "" {
		cmd = append(cmd, "--model", p.Model)
	}
	if p.SessionID != "" {
		cmd = append(cmd, "--resume", p.SessionID)
	}
	cmd = append(cmd, p.Prompt)
	return cmd
}

// buildOpencodeCommand mirrors shared/invokers/opencode.py: JSON output
// format, optional agent persona and file attachments, prompt positional.
// Permission is carried via an environment variable, not an argv flag
// (see opencodeEnv), matching OpenCode's OPENCODE_PERMISSION contract.
func buildOpencodeCommand(execPath string, p types.OpencodeParams) []string {
	cmd := []string{execPath, "run", "--format", "json"}

	if p.Model != "" {
		cmd = append(cmd, "--model", p.Model)
	}
	if p.SessionID != "" {
		cmd = append(cmd, "--session", p.SessionID)
	}
	if p.Agent != "" {
		cmd = append(cmd, "--agent", p.Agent)
	}
	for _, f := range p.File {
		abs, _ := filepath.Abs(f)
		cmd = append(cmd, "--file", abs)
	}
	cmd = append(cmd, p.Prompt)
	return cmd
}

// opencodePermissionConfig is serialized to JSON and passed via the
// OPENCODE_PERMISSION environment variable, per the original invoker's
// _build_permission_config table.
func opencodePermissionConfig(p types.Permission) map[string]string {
	switch p {
	case types.PermissionReadOnly:
		return map[string]string{"edit": "deny", "bash": "deny", "webfetch": "deny"}
	case types.PermissionWorkspaceWrite:
		return map[string]string{"edit": "allow", "bash": "ask", "webfetch": "ask"}
	default:
		return map[string]string{"edit": "allow", "bash": "allow", "webfetch": "allow", "external_directory": "allow"}
	}
}

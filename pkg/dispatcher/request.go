package dispatcher

import (
	"strings"

	"github.com/cuemby/agentbroker/pkg/errkind"
	"github.com/cuemby/agentbroker/pkg/types"
)

// request is one parsed, normalised single-call invocation: the
// Invoker params plus the dispatcher-only bookkeeping fields that
// never reach the agent (save path, the un-injected prompt for the
// transcript, debug flag).
type request struct {
	Kind           types.AgentKind
	Params         types.Params
	TaskNote       string
	Debug          bool
	SavePath       string
	OriginalPrompt string
}

// parseArgs applies §4.6 step 1's semantic checks (non-blank prompt,
// non-blank workspace, mandatory handoff path), normalises every
// workspace-relative path, injects the handoff/report-mode/reference-
// path prompt hints, and builds the per-kind Params value.
func parseArgs(kind types.AgentKind, args map[string]interface{}) (*request, error) {
	prompt := strings.TrimSpace(stringArg(args, "prompt"))
	if prompt == "" {
		return nil, errkind.New(types.ErrorValidation, "Missing required argument: 'prompt'")
	}
	workspaceRaw := stringArg(args, "workspace")
	if strings.TrimSpace(workspaceRaw) == "" {
		return nil, errkind.New(types.ErrorValidation, "Missing required argument: 'workspace'")
	}
	savePath := strings.TrimSpace(stringArg(args, "save_file"))
	if savePath == "" {
		return nil, errkind.New(types.ErrorValidation, "Missing required argument: 'save_file'")
	}

	workspace, err := resolveWorkspace(workspaceRaw)
	if err != nil {
		return nil, errkind.Wrap(types.ErrorValidation, "invalid workspace path", err)
	}
	savePath = resolveRelative(workspace, savePath)

	contextPaths := resolvePathList(workspace, stringSliceArg(args, "context_paths"))
	reportMode := boolArg(args, "report_mode")

	originalPrompt := stringArg(args, "prompt")
	injected := injectHandoff(prompt, savePath)
	injected = injectContextAndReportMode(injected, contextPaths, reportMode)

	common := types.CommonParams{
		Prompt:       injected,
		Workspace:    workspace,
		Permission:   resolvePermission(stringArg(args, "permission")),
		SessionID:    stringArg(args, "continuation_id"),
		Model:        stringArg(args, "model"),
		TaskNote:     stringArg(args, "task_note"),
		ContextPaths: contextPaths,
	}

	var params types.Params
	switch kind {
	case types.AgentClaude:
		params = types.ClaudeParams{
			CommonParams:       common,
			SystemPrompt:       stringArg(args, "system_prompt"),
			AppendSystemPrompt: stringArg(args, "append_system_prompt"),
			Agent:              stringArg(args, "agent"),
		}
	case types.AgentCodex:
		params = types.CodexParams{
			CommonParams: common,
			Image:        resolvePathList(workspace, stringSliceArg(args, "image")),
		}
	case types.AgentOpencode:
		agent := stringArg(args, "agent")
		if agent == "" {
			agent = "build"
		}
		params = types.OpencodeParams{
			CommonParams: common,
			File:         resolvePathList(workspace, stringSliceArg(args, "file")),
			Agent:        agent,
		}
	default:
		params = types.GeminiParams{CommonParams: common}
	}

	return &request{
		Kind:           kind,
		Params:         params,
		TaskNote:       common.TaskNote,
		Debug:          boolArg(args, "debug"),
		SavePath:       savePath,
		OriginalPrompt: originalPrompt,
	}, nil
}

func resolvePermission(value string) types.Permission {
	p := types.Permission(strings.ToLower(strings.TrimSpace(value)))
	if p.Valid() {
		return p
	}
	return types.PermissionReadOnly
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func boolArg(args map[string]interface{}, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

package fanout

import (
	"fmt"
	"strings"

	"github.com/cuemby/agentbroker/pkg/errkind"
	"github.com/cuemby/agentbroker/pkg/types"
)

const (
	minConcurrency     = 1
	maxConcurrency     = 100
	maxTasks           = 100
	defaultConcurrency = 20
)

// request is one parsed, validated fan-out batch (§4.8 "Validation").
type request struct {
	Kind            types.AgentKind
	Workspace       string
	Permission      types.Permission
	SavePath        string
	Debug           bool
	MaxConcurrency  int
	FailFast        bool
	Prompts         []string
	TaskNotes       []string
	ContinuationIDs []string
	Models          []string
	ContextPaths    [][]string
}

func parseArgs(kind types.AgentKind, args map[string]interface{}) (*request, error) {
	workspaceRaw := stringArg(args, "workspace")
	if strings.TrimSpace(workspaceRaw) == "" {
		return nil, errkind.New(types.ErrorValidation, "Missing required argument: 'workspace'")
	}
	savePath := strings.TrimSpace(stringArg(args, "save_file"))
	if savePath == "" {
		return nil, errkind.New(types.ErrorValidation, "Missing required argument: 'save_file'")
	}

	prompts := stringSliceArg(args, "parallel_prompts")
	if len(prompts) == 0 {
		return nil, errkind.New(types.ErrorValidation, "Missing required argument: 'parallel_prompts'")
	}
	if len(prompts) > maxTasks {
		return nil, errkind.New(types.ErrorValidation, fmt.Sprintf("parallel_prompts exceeds the %d-task limit", maxTasks))
	}
	for i, p := range prompts {
		if strings.TrimSpace(p) == "" {
			return nil, errkind.New(types.ErrorValidation, fmt.Sprintf("parallel_prompts[%d] must not be blank", i))
		}
	}

	notes := stringSliceArg(args, "parallel_task_notes")
	if len(notes) != len(prompts) {
		return nil, errkind.New(types.ErrorValidation, "parallel_task_notes must have the same length as parallel_prompts")
	}
	for i, n := range notes {
		if strings.TrimSpace(n) == "" {
			return nil, errkind.New(types.ErrorValidation, fmt.Sprintf("parallel_task_notes[%d] must not be blank", i))
		}
	}

	continuationIDs := stringSliceArg(args, "continuation_ids")
	if len(continuationIDs) > 0 && len(continuationIDs) != len(prompts) {
		return nil, errkind.New(types.ErrorValidation, "continuation_ids must have the same length as parallel_prompts")
	}

	models := modelsArg(args)
	if len(models) > 1 && len(models) != len(prompts) {
		return nil, errkind.New(types.ErrorValidation, "model array must be length 1 or the same length as parallel_prompts")
	}

	contextPaths, err := perTaskPaths(args, "context_paths_parallel", len(prompts))
	if err != nil {
		return nil, err
	}

	workspace, err := resolveWorkspace(workspaceRaw)
	if err != nil {
		return nil, errkind.Wrap(types.ErrorValidation, "invalid workspace path", err)
	}
	savePath = resolveRelative(workspace, savePath)
	for i := range contextPaths {
		contextPaths[i] = resolvePathList(workspace, contextPaths[i])
	}

	concurrency := intArg(args, "parallel_max_concurrency", defaultConcurrency)
	if concurrency < minConcurrency {
		concurrency = minConcurrency
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	return &request{
		Kind:            kind,
		Workspace:       workspace,
		Permission:      resolvePermission(stringArg(args, "permission")),
		SavePath:        savePath,
		Debug:           boolArg(args, "debug"),
		MaxConcurrency:  concurrency,
		FailFast:        boolArg(args, "parallel_fail_fast"),
		Prompts:         prompts,
		TaskNotes:       notes,
		ContinuationIDs: continuationIDs,
		Models:          models,
		ContextPaths:    contextPaths,
	}, nil
}

// modelFor resolves task i's model: the broadcast single value, the
// per-task array entry, or "" if none was given.
func (r *request) modelFor(i int) string {
	switch {
	case len(r.Models) == 0:
		return ""
	case len(r.Models) == 1:
		return r.Models[0]
	default:
		return r.Models[i]
	}
}

func (r *request) continuationFor(i int) string {
	if i < len(r.ContinuationIDs) {
		return r.ContinuationIDs[i]
	}
	return ""
}

func (r *request) contextPathsFor(i int) []string {
	if i < len(r.ContextPaths) {
		return r.ContextPaths[i]
	}
	return nil
}

func perTaskPaths(args map[string]interface{}, key string, want int) ([][]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	if len(list) != want {
		return nil, errkind.New(types.ErrorValidation, fmt.Sprintf("%s must have the same length as parallel_prompts", key))
	}
	out := make([][]string, want)
	for i, item := range list {
		inner, _ := item.([]interface{})
		paths := make([]string, 0, len(inner))
		for _, p := range inner {
			if s, ok := p.(string); ok {
				paths = append(paths, s)
			}
		}
		out[i] = paths
	}
	return out, nil
}

func modelsArg(args map[string]interface{}) []string {
	v, ok := args["model"]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return fallback
	}
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

func resolvePermission(value string) types.Permission {
	p := types.Permission(strings.ToLower(strings.TrimSpace(value)))
	if p.Valid() {
		return p
	}
	return types.PermissionReadOnly
}

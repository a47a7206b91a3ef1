package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cuemby/agentbroker/pkg/types"
)

// Tool is one generated tool definition: its name, description, raw
// JSON Schema document, and compiled validator.
type Tool struct {
	Name        string
	Description string
	Document    map[string]interface{}

	compiled *jsonschema.Schema
}

// Validate checks args (already JSON-decoded into plain Go values —
// map[string]interface{}, []interface{}, string, float64, bool, nil)
// against the compiled schema.
func (t *Tool) Validate(args map[string]interface{}) error {
	if err := t.compiled.Validate(args); err != nil {
		return fmt.Errorf("schema: %s: %w", t.Name, err)
	}
	return nil
}

var descriptions = map[types.AgentKind]string{
	types.AgentClaude:   "Run the Claude Code CLI agent for implementation work.",
	types.AgentCodex:    "Run the Codex CLI agent for deep analysis and critical review.",
	types.AgentGemini:   "Run the Gemini CLI agent for broad analysis and UI design tasks.",
	types.AgentOpencode: "Run the OpenCode CLI agent for full-stack development tasks.",
}

// commonProperties is COMMON_PROPERTIES's Go-native analogue (§6):
// every single-call tool exposes at least these.
func commonProperties() map[string]interface{} {
	return map[string]interface{}{
		"prompt": map[string]interface{}{
			"type":        "string",
			"description": "Instructions for the agent. Include full context unless continuation_id is set.",
		},
		"workspace": map[string]interface{}{
			"type":        "string",
			"description": "Project root directory; the boundary for workspace-write permission.",
		},
		"continuation_id": map[string]interface{}{
			"type":        "string",
			"default":     "",
			"description": "Resume a prior session with this same tool. Agent-specific; not portable across tools.",
		},
		"permission": map[string]interface{}{
			"type":        "string",
			"enum":        []interface{}{"read-only", "workspace-write", "unlimited"},
			"default":     "read-only",
			"description": "Filesystem access level granted to the agent.",
		},
		"model": map[string]interface{}{
			"type":        "string",
			"default":     "",
			"description": "Optional model override.",
		},
		"save_file": map[string]interface{}{
			"type":        "string",
			"description": "Handoff transcript path. Appended to regardless of permission.",
		},
		"report_mode": map[string]interface{}{
			"type":        "boolean",
			"default":     false,
			"description": "Ask the agent for a standalone, document-style reply.",
		},
		"context_paths": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"default":     []interface{}{},
			"description": "Reference file/dir paths injected into the prompt as hints.",
		},
		"task_note": map[string]interface{}{
			"type":        "string",
			"default":     "",
			"description": "Short user-facing label shown on the dashboard.",
		},
		"debug": map[string]interface{}{
			"type":        "boolean",
			"description": "Include execution statistics in the reply.",
		},
	}
}

// extraProperties is CODEX/CLAUDE/OPENCODE_PROPERTIES's Go-native
// analogue: per-agent extras inserted after the common block.
func extraProperties(kind types.AgentKind) map[string]interface{} {
	switch kind {
	case types.AgentCodex:
		return map[string]interface{}{
			"image": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"default":     []interface{}{},
				"description": "Absolute paths to image files for visual context.",
			},
		}
	case types.AgentClaude:
		return map[string]interface{}{
			"system_prompt": map[string]interface{}{
				"type":        "string",
				"default":     "",
				"description": "Full replacement for the default system prompt.",
			},
			"append_system_prompt": map[string]interface{}{
				"type":        "string",
				"default":     "",
				"description": "Instructions appended to the default system prompt.",
			},
			"agent": map[string]interface{}{
				"type":        "string",
				"default":     "",
				"description": "Named sub-agent for this session. Accepted, but not passed to the Claude CLI.",
			},
		}
	case types.AgentOpencode:
		return map[string]interface{}{
			"file": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"default":     []interface{}{},
				"description": "Absolute paths to files to attach to the message.",
			},
			"agent": map[string]interface{}{
				"type":        "string",
				"default":     "build",
				"description": "Agent profile to use (e.g. build, plan).",
			},
		}
	default:
		return nil
	}
}

// parallelProperties is PARALLEL_PROPERTIES's Go-native analogue,
// replacing prompt/continuation_id/save_file_with_*/model with their
// fan-out equivalents (§4.8, §6 "Fan-out variants").
func parallelProperties() map[string]interface{} {
	return map[string]interface{}{
		"parallel_prompts": map[string]interface{}{
			"type":        "array",
			"minItems":    1,
			"maxItems":    100,
			"items":       map[string]interface{}{"type": "string", "minLength": 1},
			"description": "One prompt per independent subprocess.",
		},
		"parallel_task_notes": map[string]interface{}{
			"type":        "array",
			"minItems":    1,
			"maxItems":    100,
			"items":       map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 120},
			"description": "Labels for each task; length must equal parallel_prompts.",
		},
		"parallel_max_concurrency": map[string]interface{}{
			"type":        "integer",
			"default":     20,
			"minimum":     1,
			"maximum":     100,
			"description": "Maximum concurrent subprocesses.",
		},
		"parallel_fail_fast": map[string]interface{}{
			"type":        "boolean",
			"default":     false,
			"description": "Stop spawning new tasks once any task fails.",
		},
		"model": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "string"},
			"default":     []interface{}{},
			"description": "One model for all tasks, or one per task matching parallel_prompts length.",
		},
	}
}

// Build generates the tool definition for kind. When parallel is true
// the fan-out variant (<agent>_parallel) is produced instead of the
// single-call tool.
func Build(kind types.AgentKind, parallel bool) (*Tool, error) {
	name := string(kind)
	properties := map[string]interface{}{}
	required := []interface{}{"prompt", "workspace"}

	for k, v := range commonProperties() {
		properties[k] = v
	}
	for k, v := range extraProperties(kind) {
		properties[k] = v
	}

	if parallel {
		name += "_parallel"
		delete(properties, "prompt")
		delete(properties, "continuation_id")
		for k, v := range parallelProperties() {
			properties[k] = v
		}
		required = []interface{}{"workspace", "save_file", "parallel_prompts", "parallel_task_notes"}
	}

	doc := map[string]interface{}{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"$id":        "agentbroker://tool/" + name + ".json",
		"type":       "object",
		"properties": properties,
		"required":   required,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(doc["$id"].(string), bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema: add resource %s: %w", name, err)
	}
	compiled, err := c.Compile(doc["$id"].(string))
	if err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", name, err)
	}

	desc := descriptions[kind]
	if parallel {
		desc = "Fan-out variant of " + string(kind) + ": run many independent prompts concurrently."
	}

	return &Tool{Name: name, Description: desc, Document: doc, compiled: compiled}, nil
}

// BuildAll generates every tool the broker exposes for the given set
// of enabled agent kinds: the single-call and (always, per §6 "for
// each agent supporting fan-out") parallel variants.
func BuildAll(kinds []types.AgentKind) ([]*Tool, error) {
	tools := make([]*Tool, 0, len(kinds)*2)
	for _, kind := range kinds {
		single, err := Build(kind, false)
		if err != nil {
			return nil, err
		}
		tools = append(tools, single)

		fanout, err := Build(kind, true)
		if err != nil {
			return nil, err
		}
		tools = append(tools, fanout)
	}
	return tools, nil
}

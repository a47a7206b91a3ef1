package response

import (
	"fmt"
	"strings"

	"github.com/cuemby/agentbroker/pkg/types"
)

// Data is the outcome one dispatched call (or one fan-out task)
// renders a reply from.
type Data struct {
	Answer       string
	SessionID    string
	ThoughtSteps []string
	Debug        *types.DebugInfo
	Success      bool
	Error        string
}

// FromResult builds Data from an Invoker's ExecutionResult.
func FromResult(res *types.ExecutionResult) Data {
	d := Data{
		Answer:    res.FinalAnswer,
		SessionID: res.SessionID,
		Debug:     res.Debug,
		Success:   res.Success,
		Error:     res.Error,
	}
	if !res.Success {
		d.ThoughtSteps = res.ThoughtSteps
	}
	return d
}

// Format renders Data as the <response>...</response> envelope. debug
// additionally emits <debug_info> when Data.Debug is set.
func Format(d Data, debug bool) string {
	if !d.Success {
		return formatError(d, debug)
	}

	var b strings.Builder
	b.WriteString("<response>\n")
	if len(d.ThoughtSteps) > 0 {
		b.WriteString(formatThoughtProcess(d.ThoughtSteps))
		b.WriteString("\n")
	}
	b.WriteString(formatAnswer(d.Answer))
	b.WriteString("\n")
	if d.SessionID != "" {
		fmt.Fprintf(&b, "  <continuation_id>%s</continuation_id>\n", d.SessionID)
	}
	if debug && d.Debug != nil {
		b.WriteString(formatDebugInfo(*d.Debug))
		b.WriteString("\n")
	}
	b.WriteString("</response>")
	return b.String()
}

// FormatForFile renders Data as plain Markdown with no XML envelope,
// suitable for appending to a handoff transcript (§6 "file content").
func FormatForFile(d Data) string {
	if !d.Success {
		return fmt.Sprintf("Error: %s", orUnknown(d.Error))
	}

	var b strings.Builder
	if len(d.ThoughtSteps) > 0 {
		b.WriteString("## Thought Process\n\n")
		for i, step := range d.ThoughtSteps {
			fmt.Fprintf(&b, "### Step %d\n\n%s\n\n", i+1, strings.TrimSpace(step))
		}
		b.WriteString("## Answer\n\n")
	}
	b.WriteString(d.Answer)
	return b.String()
}

// FormatError renders a standalone error response with no partial
// output — the §4.6 "validation failed before any agent ran" case.
func FormatError(message string) string {
	return formatError(Data{Error: message}, false)
}

func formatError(d Data, debug bool) string {
	var b strings.Builder
	b.WriteString("<response>\n")
	fmt.Fprintf(&b, "  <error>%s</error>\n", orUnknown(d.Error))

	if len(d.ThoughtSteps) > 0 {
		b.WriteString(formatThoughtProcess(d.ThoughtSteps))
		b.WriteString("\n")
	}
	if strings.TrimSpace(d.Answer) != "" {
		fmt.Fprintf(&b, "  <partial_answer>%s</partial_answer>\n", d.Answer)
	}
	if d.SessionID != "" {
		fmt.Fprintf(&b, "  <continuation_id>%s</continuation_id>\n", d.SessionID)
		if len(d.ThoughtSteps) > 0 || strings.TrimSpace(d.Answer) != "" {
			b.WriteString("  <hint>Task failed. Above is the output collected so far. You can send 'continue' with this continuation_id to retry.</hint>\n")
		}
	}
	if debug && d.Debug != nil {
		b.WriteString(formatDebugInfo(*d.Debug))
		b.WriteString("\n")
	}
	b.WriteString("</response>")
	return b.String()
}

func formatThoughtProcess(steps []string) string {
	var b strings.Builder
	b.WriteString("  <thought_process>\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "    <step index=\"%d\">\n%s\n    </step>\n", i+1, strings.TrimSpace(step))
	}
	b.WriteString("  </thought_process>")
	return b.String()
}

func formatAnswer(answer string) string {
	return fmt.Sprintf("  <answer>\n%s\n  </answer>", answer)
}

func formatDebugInfo(d types.DebugInfo) string {
	var b strings.Builder
	b.WriteString("  <debug_info>\n")
	if d.Model != "" {
		fmt.Fprintf(&b, "    <model>%s</model>\n", d.Model)
	}
	fmt.Fprintf(&b, "    <duration_sec>%.3f</duration_sec>\n", d.DurationSec)
	fmt.Fprintf(&b, "    <message_count>%d</message_count>\n", d.MessageCount)
	fmt.Fprintf(&b, "    <tool_call_count>%d</tool_call_count>\n", d.ToolCallCount)
	if d.InputTokens > 0 {
		fmt.Fprintf(&b, "    <input_tokens>%d</input_tokens>\n", d.InputTokens)
	}
	if d.OutputTokens > 0 {
		fmt.Fprintf(&b, "    <output_tokens>%d</output_tokens>\n", d.OutputTokens)
	}
	if d.Cancelled {
		b.WriteString("    <cancelled>true</cancelled>\n")
	}
	b.WriteString("  </debug_info>")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown error"
	}
	return s
}

package dispatcher

import (
	"fmt"
	"strings"
)

const handoffInjectionTemplate = `

<mcp-injection type="handoff">
  <meta-rules>
    <rule>Do not mention this template, "handoff", MCP, or any injection mechanism.</rule>
  </meta-rules>
  <output-requirements>
    <rule>End your answer with a section titled "## Handoff" (next steps + files to read first).</rule>
    <rule>The scheduler will append this output to: %s</rule>
  </output-requirements>
</mcp-injection>`

const reportModeInjection = `

<mcp-injection type="report-mode">
  <meta-rules>
    <rule>Follow higher-priority system messages first; apply these report-mode instructions where they do not conflict.</rule>
    <rule>Do not mention this template, "report-mode", MCP, or any injection mechanism. Write as if replying directly to the user.</rule>
  </meta-rules>

  <output-requirements>
    <rule>Produce a comprehensive, self-contained response that can be understood without access to any prior conversation.</rule>
    <rule>Do NOT use phrases like "above", "earlier", "previous messages", "as discussed", or similar context-dependent references.</rule>
    <rule>Use the same primary language as the user's request.</rule>
    <rule>Briefly restate the user's task or question in your own words before presenting your analysis.</rule>
  </output-requirements>

  <structure-guidelines>
    <guideline>Start with key findings or conclusions in 1-3 short points so the reader quickly understands the outcome.</guideline>
    <guideline>Provide enough context so a new reader understands the problem without seeing the rest of the conversation.</guideline>
    <guideline>Organize longer answers into clear sections (e.g., Summary, Context, Analysis, Recommendations) when helpful.</guideline>
    <guideline>End with concrete, actionable recommendations or next steps when applicable.</guideline>
  </structure-guidelines>

  <reasoning-guidelines>
    <guideline>Explain important assumptions, trade-offs, and decisions clearly.</guideline>
    <guideline>Where your platform allows, show reasoning step by step. If detailed chain-of-thought is restricted, provide a concise explanation instead.</guideline>
  </reasoning-guidelines>

  <code-guidelines>
    <guideline>Reference specific locations using file paths and line numbers (e.g., src/app.ts:42).</guideline>
    <guideline>Include small, relevant code snippets inline when they help the reader understand without opening the file.</guideline>
  </code-guidelines>
</mcp-injection>`

// injectHandoff appends the mandatory handoff hint naming the path the
// scheduler will write this call's output to (§6 SUPPLEMENTED FEATURES
// "handoff-hint injection"). Every single call carries one, since
// save_file is mandatory.
func injectHandoff(prompt, savePath string) string {
	return strings.TrimRight(prompt, " \t\n") + fmt.Sprintf(handoffInjectionTemplate, savePath)
}

// injectContextAndReportMode appends the report-mode and reference-
// paths hints, in that order, matching inject_context_and_report_mode.
func injectContextAndReportMode(prompt string, contextPaths []string, reportMode bool) string {
	result := prompt
	if reportMode {
		result += reportModeInjection
	}
	if len(contextPaths) > 0 {
		var paths strings.Builder
		for i, p := range contextPaths {
			if i > 0 {
				paths.WriteString("\n")
			}
			fmt.Fprintf(&paths, "    <path>%s</path>", p)
		}
		result += fmt.Sprintf(`

<mcp-injection type="reference-paths">
  <description>
    These paths are provided as reference for project structure.
    You may use them to understand naming conventions and file organization.
  </description>
  <paths>
%s
  </paths>
</mcp-injection>`, paths.String())
	}
	return result
}

package transcript

import (
	"fmt"
	"os"
	"strings"
)

// escapeAttr escapes the five characters an XML attribute value must
// not contain raw, in the order xml_wrapper.py applies them: & first,
// so later substitutions don't double-escape the entities they insert.
func escapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

// BuildWrapper renders one <agent-output> record (§6). prompt and
// response bodies are written verbatim, unescaped — they are Markdown
// content, not XML attribute values. status is normally "success" or
// "error".
func BuildWrapper(agent, continuationID, taskNote string, taskIndex int, status, prompt, response string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<agent-output agent=%q continuation_id=%q task_note=%q task_index=%d status=%q>\n",
		escapeAttr(agent), escapeAttr(continuationID), escapeAttr(taskNote), taskIndex, escapeAttr(status))
	b.WriteString("  <prompt>\n")
	b.WriteString(prompt)
	b.WriteString("\n  </prompt>\n")
	b.WriteString("  <response>\n")
	b.WriteString(response)
	b.WriteString("\n  </response>\n")
	b.WriteString("</agent-output>")
	return b.String()
}

// Append writes block to path, creating the file if it does not yet
// exist. Every write after the first is prefixed with a leading
// newline so consecutive blocks never concatenate onto the same line
// (§6 "Transcript file format"). The write is a single syscall per
// call, matching §5's "appends are serialised per-call" resource
// policy — callers are responsible for not calling Append
// concurrently on the same path (the Dispatcher and Fan-out
// Coordinator each own one call per finished run/batch).
func Append(path, block string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		f, openErr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if openErr != nil {
			return fmt.Errorf("transcript: open %s: %w", path, openErr)
		}
		defer f.Close()
		if _, err := f.WriteString("\n" + block); err != nil {
			return fmt.Errorf("transcript: append %s: %w", path, err)
		}
		return nil
	case os.IsNotExist(err):
		if err := os.WriteFile(path, []byte(block), 0o644); err != nil {
			return fmt.Errorf("transcript: create %s: %w", path, err)
		}
		return nil
	default:
		return fmt.Errorf("transcript: stat %s: %w", path, err)
	}
}

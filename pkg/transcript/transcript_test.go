package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWrapperEscapesAttributesNotBody(t *testing.T) {
	block := BuildWrapper(`claude`, `sess "1" & <2>`, `<Fix> & "quote"`, 0, "success", "raw <prompt> & text", "raw <response> & text")

	assert.Contains(t, block, `agent="claude"`)
	assert.Contains(t, block, `continuation_id="sess &quot;1&quot; &amp; &lt;2&gt;"`)
	assert.Contains(t, block, `task_note="&lt;Fix&gt; &amp; &quot;quote&quot;"`)
	assert.Contains(t, block, `task_index=0`)
	assert.Contains(t, block, "  <prompt>\nraw <prompt> & text\n  </prompt>")
	assert.Contains(t, block, "  <response>\nraw <response> & text\n  </response>")
}

func TestAppendCreatesThenPrependsNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handoff.xml")

	require.NoError(t, Append(path, "<agent-output>first</agent-output>"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<agent-output>first</agent-output>", string(data))

	require.NoError(t, Append(path, "<agent-output>second</agent-output>"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<agent-output>first</agent-output>\n<agent-output>second</agent-output>", string(data))
}

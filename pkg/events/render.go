package events

import (
	"fmt"
	"html"

	"github.com/cuemby/agentbroker/pkg/types"
)

// RenderHTML produces the small HTML fragment the dashboard appends per
// delivered event. The dashboard's own HTML/CSS/JS is an explicit
// external collaborator (§1); this is only the minimal per-event
// marker the SSE payload carries alongside the JSON event so a
// dashboard has something to insert without re-deriving it client-side.
func RenderHTML(ev types.UnifiedEvent) string {
	base := ev.Base()
	switch e := ev.(type) {
	case types.LifecycleEvent:
		return fmt.Sprintf(`<div class="event lifecycle" data-source=%q>%s</div>`, base.Source, html.EscapeString(string(e.LifecycleType)))
	case types.MessageEvent:
		return fmt.Sprintf(`<div class="event message" data-role=%q>%s</div>`, e.Role, html.EscapeString(e.Text))
	case types.OperationEvent:
		return fmt.Sprintf(`<div class="event operation" data-type=%q>%s</div>`, e.OperationType, html.EscapeString(e.Name))
	case types.SystemEvent:
		return fmt.Sprintf(`<div class="event system" data-severity=%q>%s</div>`, e.Severity, html.EscapeString(e.Message))
	default:
		return ""
	}
}

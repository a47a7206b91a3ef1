package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/agentbroker/pkg/dispatcher"
	"github.com/cuemby/agentbroker/pkg/fanout"
	"github.com/cuemby/agentbroker/pkg/response"
	"github.com/cuemby/agentbroker/pkg/rpc"
	"github.com/cuemby/agentbroker/pkg/schema"
	"github.com/cuemby/agentbroker/pkg/types"
)

const guiURLTool = "get_gui_url"

// broker adapts the Dispatcher (C6) and Fan-out Coordinator (C8) to the
// rpc.Handler the JSON-RPC stdio loop drives, and answers the
// get_gui_url tool (§6) from the dashboard server's advertised URL.
type broker struct {
	dispatcher *dispatcher.Dispatcher
	fanout     *fanout.Coordinator
	dashboard  func() (string, bool)
}

func (b *broker) ListTools() []rpc.ToolDescriptor {
	var out []rpc.ToolDescriptor
	for _, t := range b.dispatcher.Tools() {
		out = append(out, descriptorOf(t))
	}
	for _, t := range b.fanout.Tools() {
		out = append(out, descriptorOf(t))
	}
	out = append(out, rpc.ToolDescriptor{
		Name:        guiURLTool,
		Description: "Return the live dashboard URL, if the dashboard is enabled.",
		InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
	})
	return out
}

func descriptorOf(t *schema.Tool) rpc.ToolDescriptor {
	return rpc.ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.Document}
}

func (b *broker) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	if name == guiURLTool {
		return b.handleGUIURL(), nil
	}

	if kind, ok := strings.CutSuffix(name, "_parallel"); ok {
		return b.fanout.Handle(ctx, types.AgentKind(kind), args)
	}
	return b.dispatcher.Handle(ctx, types.AgentKind(name), args)
}

// handleGUIURL returns an error string, not a protocol error, when the
// dashboard is disabled (SUPPLEMENTED FEATURES: "get_gui_url tool").
func (b *broker) handleGUIURL() string {
	url, ok := b.dashboard()
	if !ok {
		return response.FormatError("the dashboard is disabled")
	}
	return response.Format(response.Data{Answer: fmt.Sprintf("Dashboard URL: %s", url), Success: true}, false)
}

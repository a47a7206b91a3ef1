package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/agentbroker/pkg/config"
	"github.com/cuemby/agentbroker/pkg/errkind"
	"github.com/cuemby/agentbroker/pkg/events"
	"github.com/cuemby/agentbroker/pkg/invoker"
	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/metrics"
	"github.com/cuemby/agentbroker/pkg/registry"
	"github.com/cuemby/agentbroker/pkg/response"
	"github.com/cuemby/agentbroker/pkg/schema"
	"github.com/cuemby/agentbroker/pkg/transcript"
	"github.com/cuemby/agentbroker/pkg/types"
)

// progressInterval mirrors PROGRESS_REPORT_INTERVAL: how often the
// heartbeat keeps a long call's connection alive.
const progressInterval = 30 * time.Second

// Dispatcher is the Dispatcher (C6): one instance serves every
// single-call tool invocation for the process's lifetime.
type Dispatcher struct {
	Config   config.Config
	Registry *registry.Registry
	Bus      *events.Bus

	// NewInvoker builds the Invoker for a call; overridable in tests.
	NewInvoker func(types.AgentKind) *invoker.Invoker

	tools map[types.AgentKind]*schema.Tool
}

// New builds a Dispatcher and pre-compiles the single-call schema for
// every enabled agent kind.
func New(cfg config.Config, reg *registry.Registry, bus *events.Bus) (*Dispatcher, error) {
	d := &Dispatcher{
		Config:     cfg,
		Registry:   reg,
		Bus:        bus,
		NewInvoker: invoker.New,
		tools:      make(map[types.AgentKind]*schema.Tool),
	}
	for _, kind := range types.AgentKinds() {
		if !cfg.IsToolAllowed(kind) {
			continue
		}
		tool, err := schema.Build(kind, false)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: build schema for %s: %w", kind, err)
		}
		d.tools[kind] = tool
	}
	return d, nil
}

// Tools returns the compiled single-call tool definitions, in the
// stable AgentKinds order, for advertising via the tools listing.
func (d *Dispatcher) Tools() []*schema.Tool {
	out := make([]*schema.Tool, 0, len(d.tools))
	for _, kind := range types.AgentKinds() {
		if t, ok := d.tools[kind]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Handle runs one single-call tool invocation to completion and
// returns the rendered reply text. It never returns a Go error for an
// agent-side failure — those are folded into the <response><error>
// envelope, matching format_error_response's API contract; a non-nil
// error here means the call could not be dispatched at all (unknown
// tool, disabled tool).
func (d *Dispatcher) Handle(ctx context.Context, kind types.AgentKind, args map[string]interface{}) (string, error) {
	tool, ok := d.tools[kind]
	if !ok {
		return "", errkind.New(types.ErrorValidation, fmt.Sprintf("unknown or disabled tool: %s", kind))
	}

	if err := tool.Validate(args); err != nil {
		return response.FormatError(err.Error()), nil
	}

	req, err := parseArgs(kind, args)
	if err != nil {
		return response.FormatError(err.Error()), nil
	}

	taskNote := req.TaskNote
	logger := log.WithAgent(string(kind))

	requestID := registry.NewRequestID()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.Registry.Register(requestID, kind, cancel, taskNote); err != nil {
		return response.FormatError(err.Error()), nil
	}
	metrics.ActiveRequests.Set(float64(d.Registry.ActiveCount()))
	defer func() { metrics.ActiveRequests.Set(float64(d.Registry.ActiveCount())) }()
	defer d.Registry.Unregister(requestID)
	defer d.Registry.MarkDone(requestID)

	d.pushSystem(kind, types.SeverityInfo, fmt.Sprintf("dispatching %s: %s", kind, taskNote))

	heartbeatDone := make(chan struct{})
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		d.runHeartbeat(runCtx, kind, heartbeatDone)
	}()
	defer func() {
		close(heartbeatDone)
		hbWG.Wait()
	}()

	metrics.ProcessSpawnsTotal.WithLabelValues(string(kind)).Inc()
	timer := metrics.NewTimer()

	inv := d.NewInvoker(kind)
	result, execErr := inv.Stream(runCtx, req.Params, func(ev types.UnifiedEvent) {
		if d.Bus != nil {
			d.Bus.Push(ev)
		}
	})
	timer.ObserveDurationVec(metrics.RequestDuration, string(kind))
	if execErr != nil {
		logger.Error().Err(execErr).Msg("invoker failed")
		metrics.RequestsTotal.WithLabelValues(string(kind), "internal_error").Inc()
		return response.FormatError(execErr.Error()), nil
	}

	data := response.FromResult(result)
	metrics.ProcessExitCode.WithLabelValues(string(kind), string(result.ErrorKind)).Inc()
	metrics.RequestsTotal.WithLabelValues(string(kind), outcomeLabel(data.Success)).Inc()

	if err := d.writeHandoff(req, data); err != nil {
		logger.Warn().Err(err).Msg("failed to write handoff transcript")
	}

	debug := req.Debug || d.Config.Debug
	return response.Format(data, debug), nil
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func (d *Dispatcher) runHeartbeat(ctx context.Context, kind types.AgentKind, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	elapsed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			elapsed += int(progressInterval.Seconds())
			d.pushSystem(kind, types.SeverityDebug, fmt.Sprintf("still running (%ds)", elapsed))
		}
	}
}

func (d *Dispatcher) pushSystem(kind types.AgentKind, severity types.Severity, message string) {
	if d.Bus == nil {
		return
	}
	d.Bus.Push(types.SystemEvent{
		EventBase: types.EventBase{
			EventID:   types.NewEventID(kind, "dispatch"),
			Timestamp: time.Now(),
			Source:    kind,
		},
		Severity: severity,
		Message:  message,
	})
}

// writeHandoff appends the call's outcome to its mandatory handoff
// file, regardless of the requested permission level (§4.6 step 6,
// "read-only transcript exception").
func (d *Dispatcher) writeHandoff(req *request, data response.Data) error {
	status := "success"
	if !data.Success {
		status = "error"
	}
	fileContent := response.FormatForFile(data)
	block := transcript.BuildWrapper(string(req.Kind), data.SessionID, req.TaskNote, 0, status, req.OriginalPrompt, fileContent)
	return transcript.Append(req.SavePath, block)
}

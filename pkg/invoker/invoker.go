package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/agentbroker/pkg/agentparser"
	"github.com/cuemby/agentbroker/pkg/errkind"
	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/process"
	"github.com/cuemby/agentbroker/pkg/types"
)

// Invoker runs one downstream CLI agent to completion, feeding every
// parsed event to an optional live callback while also reducing the
// stream into one ExecutionResult. Python's base.py kept execute() and
// stream() as two separate entry points built on the same internal
// generator; the broker always needs both the live feed (for the GUI)
// and the aggregated answer (for the JSON-RPC reply) from one run, so
// Run folds them into a single call.
type Invoker struct {
	Kind     types.AgentKind
	ExecPath string
	Runner   *process.Runner
}

// New builds an Invoker for kind, defaulting ExecPath to the agent's own
// command name (resolved via $PATH at spawn time) and Runner to the
// standard process.NewRunner() configuration.
func New(kind types.AgentKind) *Invoker {
	return &Invoker{Kind: kind, ExecPath: string(kind), Runner: process.NewRunner()}
}

func (iv *Invoker) execPath() string {
	if iv.ExecPath != "" {
		return iv.ExecPath
	}
	return string(iv.Kind)
}

func (iv *Invoker) runner() *process.Runner {
	if iv.Runner != nil {
		return iv.Runner
	}
	return process.NewRunner()
}

// Execute runs params to completion with no live callback.
func (iv *Invoker) Execute(ctx context.Context, params types.Params) (*types.ExecutionResult, error) {
	return iv.Run(ctx, params, nil)
}

// Stream runs params to completion, invoking onEvent for every UnifiedEvent
// (after delta-merging) as it becomes available, in addition to returning
// the same aggregated ExecutionResult Execute would.
func (iv *Invoker) Stream(ctx context.Context, params types.Params, onEvent func(types.UnifiedEvent)) (*types.ExecutionResult, error) {
	return iv.Run(ctx, params, onEvent)
}

// Run is the shared implementation behind Execute and Stream.
func (iv *Invoker) Run(ctx context.Context, params types.Params, onEvent func(types.UnifiedEvent)) (*types.ExecutionResult, error) {
	start := time.Now()
	common := params.Common()

	if err := validateParams(common); err != nil {
		return &types.ExecutionResult{
			Success:   false,
			Error:     err.Error(),
			ErrorKind: types.ErrorValidation,
		}, nil
	}

	argv, err := buildCommand(iv.execPath(), iv.Kind, params)
	if err != nil {
		return nil, err
	}

	logger := log.WithAgent(string(iv.Kind))
	logger.Info().Str("exec", argv[0]).Msg("executing")

	spec := process.Spec{Argv: argv, Dir: common.Workspace}
	if iv.Kind == types.AgentOpencode {
		cfg := opencodePermissionConfig(common.Permission)
		b, _ := json.Marshal(cfg)
		spec.Env = map[string]string{"OPENCODE_PERMISSION": string(b)}
	}
	if usesStdinPrompt(iv.Kind) {
		spec.StdinBytes = []byte(common.Prompt)
	}

	proc, err := iv.runner().Start(spec)
	if err != nil {
		return &types.ExecutionResult{
			Success:   false,
			Error:     fmt.Sprintf("failed to start %s: %v", iv.Kind, err),
			ErrorKind: types.ErrorInternal,
		}, nil
	}

	ec := types.NewExecutionContext()
	parser := agentparser.New(iv.Kind)

	deliver(onEvent, syntheticSystemEvent(iv.Kind, types.SeverityInfo, fmt.Sprintf("%s CLI started", iv.Kind)))

	var pendingEvt *types.MessageEvent
	var pendingText string

	flushPending := func() {
		if pendingEvt == nil {
			return
		}
		merged := *pendingEvt
		merged.Text = pendingText
		merged.IsDelta = false
		pendingEvt = nil
		pendingText = ""
		deliver(onEvent, merged)
		accumulateFinalAnswer(ec, merged)
	}

	linesCh := proc.Lines()
	fatalCh := proc.Fatal()
	var fatalMsg string
	cancelled := false

runLoop:
	for {
		select {
		case <-ctx.Done():
			cancelled = true
			break runLoop
		case msg := <-fatalCh:
			fatalMsg = msg
			break runLoop
		case line, ok := <-linesCh:
			if !ok {
				break runLoop
			}
			var raw map[string]interface{}
			if err := json.Unmarshal([]byte(line), &raw); err != nil {
				continue
			}
			for _, ev := range parser.Parse(raw) {
				ec.MessageCount++
				base := ev.Base()
				if ec.SessionID == "" && base.SessionID != "" {
					ec.SessionID = base.SessionID
				}

				if msgEv, ok := ev.(types.MessageEvent); ok &&
					msgEv.Role == types.RoleAssistant &&
					msgEv.ContentType != types.ContentReasoning &&
					msgEv.IsDelta {
					if pendingEvt == nil || pendingEvt.Role != msgEv.Role {
						flushPending()
						copyEv := msgEv
						pendingEvt = &copyEv
						pendingText = msgEv.Text
					} else {
						pendingText += msgEv.Text
					}
					continue
				}

				flushPending()

				switch typed := ev.(type) {
				case types.SystemEvent:
					if typed.Severity == types.SeverityError {
						ec.CapturedErrors = append(ec.CapturedErrors, typed.Message)
					}
				case types.MessageEvent:
					if typed.Role == types.RoleAssistant && typed.ContentType != types.ContentReasoning {
						accumulateFinalAnswer(ec, typed)
					}
				case types.OperationEvent:
					switch typed.OperationType {
					case types.OperationCommand, types.OperationTool, types.OperationMCP:
						ec.ToolCallCount++
					}
				case types.LifecycleEvent:
					extractLifecycleStats(ec, typed)
				}

				deliver(onEvent, ev)
			}
		}
	}
	flushPending()

	if fatalMsg != "" {
		proc.Terminate()
	} else if cancelled {
		proc.Terminate()
	}
	exitCode, _ := proc.Wait()

	// Precedence mirrors base.py's _process_error_state: a fatal stderr
	// pattern wins first, then cancellation, then a System{error} event
	// that surfaced mid-stream from stdout itself (an API-level failure
	// the agent reported but did not necessarily exit non-zero for),
	// then a non-zero exit code, and only then the opencode exit-0
	// traceback fallback.
	var errKind types.ErrorKind
	switch {
	case fatalMsg != "":
		ec.ExitError = fmt.Sprintf("%s fatal error: %s", iv.Kind, fatalMsg)
		errKind = types.ErrorFatal
		logger.Warn().Str("reason", fatalMsg).Msg("terminated on fatal stderr pattern")
	case cancelled:
		ec.Cancelled = true
		errKind = types.ErrorCancelled
		deliver(onEvent, syntheticSystemEvent(iv.Kind, types.SeverityWarning, "Execution cancelled by user"))
	case len(ec.CapturedErrors) > 0:
		ec.ExitError = strings.Join(ec.CapturedErrors, "\n")
		errKind = types.ErrorAPI
	case exitCode != 0:
		ec.ExitError = buildExitError(iv.Kind, exitCode, proc.StderrTail(5))
		errKind = types.ErrorExit
	default:
		checkExecutionErrors(iv.Kind, ec, proc.StderrTail(5))
		if ec.ExitError != "" {
			errKind = types.ErrorExit
		}
	}

	if onEvent != nil && ec.ExitError != "" && fatalMsg == "" && !cancelled {
		deliver(onEvent, syntheticSystemEvent(iv.Kind, types.SeverityError, ec.ExitError))
	}

	result := &types.ExecutionResult{
		Success:      ec.ExitError == "" && !ec.Cancelled,
		SessionID:    ec.SessionID,
		FinalAnswer:  ec.CurrentFinal,
		ThoughtSteps: ec.ThoughtSteps,
		Cancelled:    ec.Cancelled,
	}
	if !result.Success {
		result.Error = ec.ExitError
		result.ErrorKind = errKind
	}

	code := exitCode
	result.Debug = &types.DebugInfo{
		Model:         ec.Model,
		DurationSec:   time.Since(start).Seconds(),
		MessageCount:  ec.MessageCount,
		ToolCallCount: ec.ToolCallCount,
		InputTokens:   ec.InputTokens,
		OutputTokens:  ec.OutputTokens,
		ExitCode:      &code,
		Cancelled:     ec.Cancelled,
	}

	return result, nil
}

// checkExecutionErrors is the exit_error hook Python's subclasses
// override (_check_execution_errors). Only OpenCode uses it: an exit 0
// with any non-blank stderr tail is reported as exit_error (§9, the
// "exit-0-with-traceback" open question). Stdout is not inspected here;
// non-JSON stdout lines are skipped by Run.
func checkExecutionErrors(kind types.AgentKind, ec *types.ExecutionContext, stderrTail []string) {
	if kind != types.AgentOpencode {
		return
	}
	if ec.ExitError != "" {
		return
	}
	if len(stderrTail) > 0 && strings.TrimSpace(strings.Join(stderrTail, "\n")) != "" {
		ec.ExitError = fmt.Sprintf("opencode error (exit code 0):\n%s", strings.Join(stderrTail, "\n"))
	}
}

func buildExitError(kind types.AgentKind, exitCode int, stderrTail []string) string {
	msg := fmt.Sprintf("%s exited with code %d", kind, exitCode)
	if len(stderrTail) > 0 {
		return msg + ":\n" + strings.Join(stderrTail, "\n")
	}
	return msg
}

func accumulateFinalAnswer(ec *types.ExecutionContext, ev types.MessageEvent) {
	if ev.Text == "" {
		return
	}
	if ec.CurrentFinal != "" {
		ec.ThoughtSteps = append(ec.ThoughtSteps, ec.CurrentFinal)
	}
	ec.CurrentFinal = ev.Text
}

func extractLifecycleStats(ec *types.ExecutionContext, ev types.LifecycleEvent) {
	if ec.Model == "" && ev.Model != "" {
		ec.Model = ev.Model
	}
	if ev.Stats == nil {
		return
	}
	lookup := func(keys ...string) (int, bool) {
		for _, k := range keys {
			if v, ok := ev.Stats[k]; ok {
				return toInt(v), true
			}
		}
		if usage, ok := ev.Stats["usage"].(map[string]interface{}); ok {
			for _, k := range keys {
				if v, ok := usage[k]; ok {
					return toInt(v), true
				}
			}
		}
		return 0, false
	}
	if v, ok := lookup("input_tokens", "total_input_tokens"); ok {
		ec.InputTokens = v
	}
	if v, ok := lookup("output_tokens", "total_output_tokens"); ok {
		ec.OutputTokens = v
	}
	if v, ok := lookup("cached_input_tokens"); ok {
		ec.CachedInTokens = v
	}
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return 0
}

func deliver(onEvent func(types.UnifiedEvent), ev types.UnifiedEvent) {
	if onEvent != nil {
		onEvent(ev)
	}
}

func syntheticSystemEvent(kind types.AgentKind, severity types.Severity, message string) types.SystemEvent {
	return types.SystemEvent{
		EventBase: types.EventBase{
			EventID:   types.NewEventID(kind, "synthetic"),
			Timestamp: time.Now(),
			Source:    kind,
		},
		Severity: severity,
		Message:  message,
	}
}

// validateParams mirrors CLIInvoker.validate_params: prompt and an
// existing, directory workspace are mandatory for every agent.
func validateParams(p types.CommonParams) error {
	if p.Prompt == "" {
		return errkind.New(types.ErrorValidation, "prompt is required")
	}
	if p.Workspace == "" {
		return errkind.New(types.ErrorValidation, "workspace is required")
	}
	info, err := os.Stat(p.Workspace)
	if err != nil {
		return errkind.Wrap(types.ErrorValidation, "workspace does not exist", err)
	}
	if !info.IsDir() {
		return errkind.New(types.ErrorValidation, fmt.Sprintf("workspace is not a directory: %s", p.Workspace))
	}
	return nil
}

package fanout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/agentbroker/pkg/errkind"
	"github.com/cuemby/agentbroker/pkg/events"
	"github.com/cuemby/agentbroker/pkg/invoker"
	"github.com/cuemby/agentbroker/pkg/log"
	"github.com/cuemby/agentbroker/pkg/metrics"
	"github.com/cuemby/agentbroker/pkg/response"
	"github.com/cuemby/agentbroker/pkg/schema"
	"github.com/cuemby/agentbroker/pkg/transcript"
	"github.com/cuemby/agentbroker/pkg/types"
)

// taskStatus is one task's terminal disposition in the join.
type taskStatus string

const (
	taskSuccess taskStatus = "success"
	taskFailed  taskStatus = "error"
	taskSkipped taskStatus = "skipped"
)

type taskOutcome struct {
	Index    int
	Prompt   string
	TaskNote string
	Status   taskStatus
	Data     response.Data
}

// Coordinator is the Fan-out Coordinator (C8): one instance serves
// every `_parallel` tool invocation for the process's lifetime.
type Coordinator struct {
	Bus *events.Bus

	// NewInvoker builds the Invoker for a task; overridable in tests.
	NewInvoker func(types.AgentKind) *invoker.Invoker

	tools map[types.AgentKind]*schema.Tool
}

// New builds a Coordinator and pre-compiles the `_parallel` schema for
// every enabled agent kind.
func New(bus *events.Bus, allowed []types.AgentKind) (*Coordinator, error) {
	c := &Coordinator{
		Bus:        bus,
		NewInvoker: invoker.New,
		tools:      make(map[types.AgentKind]*schema.Tool),
	}
	for _, kind := range allowed {
		tool, err := schema.Build(kind, true)
		if err != nil {
			return nil, fmt.Errorf("fanout: build schema for %s: %w", kind, err)
		}
		c.tools[kind] = tool
	}
	return c, nil
}

func (c *Coordinator) Tools() []*schema.Tool {
	out := make([]*schema.Tool, 0, len(c.tools))
	for _, kind := range types.AgentKinds() {
		if t, ok := c.tools[kind]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Handle runs one `_parallel` tool invocation to completion and
// returns the rendered summary reply. Like Dispatcher.Handle, agent-
// side and per-task failures are folded into the reply text rather
// than returned as a Go error.
func (c *Coordinator) Handle(ctx context.Context, kind types.AgentKind, args map[string]interface{}) (string, error) {
	tool, ok := c.tools[kind]
	if !ok {
		return "", errkind.New(types.ErrorValidation, fmt.Sprintf("unknown or disabled tool: %s_parallel", kind))
	}
	if err := tool.Validate(args); err != nil {
		return response.FormatError(err.Error()), nil
	}

	req, err := parseArgs(kind, args)
	if err != nil {
		return response.FormatError(err.Error()), nil
	}

	metrics.FanoutBatchSize.Observe(float64(len(req.Prompts)))

	outcomes := c.run(ctx, req)

	ok, failed, skipped := tally(outcomes)
	metrics.FanoutTasksTotal.WithLabelValues(string(kind), string(taskSuccess)).Add(float64(ok))
	metrics.FanoutTasksTotal.WithLabelValues(string(kind), string(taskFailed)).Add(float64(failed))
	metrics.FanoutTasksTotal.WithLabelValues(string(kind), string(taskSkipped)).Add(float64(skipped))

	if err := c.writeTranscript(req, outcomes); err != nil {
		log.WithComponent("fanout").Warn().Err(err).Msg("failed to write handoff transcript")
	}

	c.pushSummary(kind, outcomes)

	return formatSummary(outcomes), nil
}

// run schedules every task under a size-MaxConcurrency semaphore,
// trips the fail-fast latch on the first failure, and joins every
// task before sorting by task index (§4.8 "Scheduling"/"Join order").
func (c *Coordinator) run(ctx context.Context, req *request) []taskOutcome {
	sem := make(chan struct{}, req.MaxConcurrency)
	var failed atomic.Bool
	var wg sync.WaitGroup

	results := make([]taskOutcome, len(req.Prompts))
	var completed atomic.Int64
	total := len(req.Prompts)

	for i := range req.Prompts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if req.FailFast && failed.Load() {
				results[i] = taskOutcome{
					Index:    i,
					Prompt:   req.Prompts[i],
					TaskNote: req.TaskNotes[i],
					Status:   taskSkipped,
				}
				return
			}

			outcome := c.runTask(ctx, req, i)
			results[i] = outcome
			n := completed.Add(1)
			c.pushProgress(req.Kind, int(n), total)

			if outcome.Status == taskFailed {
				failed.Store(true)
			}
		}(i)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

func (c *Coordinator) runTask(ctx context.Context, req *request, i int) taskOutcome {
	common := types.CommonParams{
		Prompt:       req.Prompts[i],
		Workspace:    req.Workspace,
		Permission:   req.Permission,
		SessionID:    req.continuationFor(i),
		Model:        req.modelFor(i),
		TaskNote:     req.TaskNotes[i],
		ContextPaths: req.contextPathsFor(i),
		TaskIndex:    i,
	}

	var params types.Params
	switch req.Kind {
	case types.AgentClaude:
		params = types.ClaudeParams{CommonParams: common}
	case types.AgentCodex:
		params = types.CodexParams{CommonParams: common}
	case types.AgentOpencode:
		params = types.OpencodeParams{CommonParams: common, Agent: "build"}
	default:
		params = types.GeminiParams{CommonParams: common}
	}

	metrics.ProcessSpawnsTotal.WithLabelValues(string(req.Kind)).Inc()
	timer := metrics.NewTimer()

	inv := c.NewInvoker(req.Kind)
	result, err := inv.Stream(ctx, params, func(ev types.UnifiedEvent) {
		if c.Bus != nil {
			c.Bus.Push(withTaskIndex(ev, i))
		}
	})
	timer.ObserveDurationVec(metrics.ProcessDuration, string(req.Kind))

	outcome := taskOutcome{Index: i, Prompt: req.Prompts[i], TaskNote: req.TaskNotes[i]}
	if err != nil {
		outcome.Status = taskFailed
		outcome.Data = response.Data{Success: false, Error: err.Error()}
		metrics.ProcessExitCode.WithLabelValues(string(req.Kind), "internal_error").Inc()
		return outcome
	}

	outcome.Data = response.FromResult(result)
	metrics.ProcessExitCode.WithLabelValues(string(req.Kind), string(result.ErrorKind)).Inc()
	if outcome.Data.Success {
		outcome.Status = taskSuccess
	} else {
		outcome.Status = taskFailed
	}
	return outcome
}

// withTaskIndex stamps ev's EventBase.TaskIndex without mutating the
// caller's copy (events are value types embedding EventBase).
func withTaskIndex(ev types.UnifiedEvent, index int) types.UnifiedEvent {
	switch typed := ev.(type) {
	case types.LifecycleEvent:
		typed.TaskIndex = index
		return typed
	case types.MessageEvent:
		typed.TaskIndex = index
		return typed
	case types.OperationEvent:
		typed.TaskIndex = index
		return typed
	case types.SystemEvent:
		typed.TaskIndex = index
		return typed
	default:
		return ev
	}
}

func (c *Coordinator) pushProgress(kind types.AgentKind, completed, total int) {
	if c.Bus == nil {
		return
	}
	c.Bus.Push(types.SystemEvent{
		EventBase: types.EventBase{
			EventID:   types.NewEventID(kind, "fanout-progress"),
			Timestamp: time.Now(),
			Source:    kind,
		},
		Severity: types.SeverityInfo,
		Message:  fmt.Sprintf("fan-out progress: %d/%d tasks complete", completed, total),
	})
}

// pushSummary emits the supplemented synthetic fan-out summary event
// (SPEC_FULL.md) once the whole batch has joined.
func (c *Coordinator) pushSummary(kind types.AgentKind, outcomes []taskOutcome) {
	if c.Bus == nil {
		return
	}
	ok, failed, skipped := tally(outcomes)
	c.Bus.Push(types.SystemEvent{
		EventBase: types.EventBase{
			EventID:   types.NewEventID(kind, "fanout-summary"),
			Timestamp: time.Now(),
			Source:    kind,
		},
		Severity: types.SeverityInfo,
		Message:  fmt.Sprintf("fan-out complete: %d succeeded, %d failed, %d skipped", ok, failed, skipped),
	})
}

func tally(outcomes []taskOutcome) (ok, failed, skipped int) {
	for _, o := range outcomes {
		switch o.Status {
		case taskSuccess:
			ok++
		case taskFailed:
			failed++
		case taskSkipped:
			skipped++
		}
	}
	return
}

// writeTranscript concatenates every non-skipped task's XML-wrapped
// block and appends the batch to the handoff transcript in a single
// write (§4.8 "Aggregation").
func (c *Coordinator) writeTranscript(req *request, outcomes []taskOutcome) error {
	var blocks []string
	for _, o := range outcomes {
		if o.Status == taskSkipped {
			continue
		}
		fileContent := response.FormatForFile(o.Data)
		blocks = append(blocks, transcript.BuildWrapper(string(req.Kind), o.Data.SessionID, o.TaskNote, o.Index, string(o.Status), o.Prompt, fileContent))
	}
	if len(blocks) == 0 {
		return nil
	}
	return transcript.Append(req.SavePath, strings.Join(blocks, "\n"))
}

func formatSummary(outcomes []taskOutcome) string {
	ok, failed, skipped := tally(outcomes)
	var b strings.Builder
	b.WriteString("<response>\n  <answer>\n")
	fmt.Fprintf(&b, "Fan-out complete: %d succeeded, %d failed, %d skipped.\n", ok, failed, skipped)
	for _, o := range outcomes {
		status := string(o.Status)
		note := o.TaskNote
		if note == "" {
			note = fmt.Sprintf("task %d", o.Index)
		}
		fmt.Fprintf(&b, "  - [%s] %s: %s\n", status, note, summaryLine(o))
	}
	b.WriteString("  </answer>\n</response>")
	return b.String()
}

func summaryLine(o taskOutcome) string {
	switch o.Status {
	case taskSkipped:
		return "skipped (fail-fast)"
	case taskFailed:
		return o.Data.Error
	default:
		return strings.TrimSpace(firstLine(o.Data.Answer))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

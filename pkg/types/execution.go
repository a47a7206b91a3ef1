package types

import "os/exec"

// ExecutionContext is per-request state owned exclusively by one Invoker
// instance for the duration of one run. §3's hard invariant: no
// ExecutionContext is ever shared across two runs. Invokers must
// construct a fresh context per call rather than reuse nullable fields —
// this is the Go-native fix for the state-leak bugs the original source
// guarded against with defensive nil-checks (§9 Design Notes).
type ExecutionContext struct {
	Process   *exec.Cmd
	SessionID string

	// CurrentFinal is the assistant answer buffer currently being
	// accumulated via delta-merging; ThoughtSteps holds every buffer
	// that was superseded before the run ended.
	CurrentFinal string
	ThoughtSteps []string

	CapturedErrors []string
	ExitError      string
	Cancelled      bool

	Model           string
	MessageCount    int
	ToolCallCount   int
	InputTokens     int
	OutputTokens    int
	CachedInTokens  int
}

// NewExecutionContext allocates a fresh, zero-valued context. Call this
// once per Invoker.Execute/Stream invocation; never retain or reuse one
// across calls (see the package doc and §3).
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{}
}

// CommonParams are the parameters shared by every agent kind (§4.3).
type CommonParams struct {
	Prompt     string
	Workspace  string
	Permission Permission
	SessionID  string
	Model      string
	FullOutput bool
	TaskNote   string
	TaskTags   []string

	// ContextPaths are optional extra reference paths injected into the
	// prompt by the Dispatcher (§4.6 step 3).
	ContextPaths []string
	// TaskIndex identifies this call within a fan-out batch (0 for a
	// single call); carried through to the transcript and to per-task
	// GUI event attribution.
	TaskIndex int
}

// Params is implemented by every per-agent parameter struct, giving the
// Invoker a uniform way to reach the shared fields regardless of which
// agent-specific extras ride alongside them.
type Params interface {
	Common() CommonParams
}

// ClaudeParams adds Claude-specific extras to CommonParams.
type ClaudeParams struct {
	CommonParams
	SystemPrompt       string
	AppendSystemPrompt string
	Agent              string
}

func (p ClaudeParams) Common() CommonParams { return p.CommonParams }

// CodexParams adds Codex-specific extras to CommonParams.
type CodexParams struct {
	CommonParams
	Image []string
}

func (p CodexParams) Common() CommonParams { return p.CommonParams }

// GeminiParams has no extras beyond CommonParams.
type GeminiParams struct {
	CommonParams
}

func (p GeminiParams) Common() CommonParams { return p.CommonParams }

// OpencodeParams adds Opencode-specific extras to CommonParams.
type OpencodeParams struct {
	CommonParams
	File  []string
	Agent string
}

func (p OpencodeParams) Common() CommonParams { return p.CommonParams }

// DebugInfo is the best-effort execution statistics block included in a
// reply when the debug flag is on.
type DebugInfo struct {
	Model         string  `json:"model"`
	DurationSec   float64 `json:"duration_sec"`
	MessageCount  int     `json:"message_count"`
	ToolCallCount int     `json:"tool_call_count"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	ExitCode      *int    `json:"exit_code,omitempty"`
	Cancelled     bool    `json:"cancelled,omitempty"`
}

// ErrorKind is the §7 error taxonomy's classification kind.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "validation"
	ErrorExit       ErrorKind = "exit_error"
	ErrorFatal      ErrorKind = "fatal_error"
	ErrorAPI        ErrorKind = "api_error"
	ErrorCancelled  ErrorKind = "cancelled"
	ErrorInternal   ErrorKind = "internal"
)

// ExecutionResult is what Invoker.Execute returns: the unified outcome
// of one run, success or failure (§4.3 "Output").
type ExecutionResult struct {
	Success      bool
	SessionID    string
	FinalAnswer  string
	ThoughtSteps []string
	Error        string
	ErrorKind    ErrorKind
	Cancelled    bool
	Debug        *DebugInfo
}

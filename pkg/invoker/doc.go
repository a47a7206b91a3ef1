/*
Package invoker implements the Invoker (C3): it builds a per-agent CLI
command line, spawns it through pkg/process, feeds its stdout lines
through pkg/agentparser, and reduces the resulting UnifiedEvent stream
into one aggregated ExecutionResult. Stream additionally passes every
event to an onEvent callback as it arrives; Execute passes none.

Grounded on original_source's shared/invokers/base.py (CLIInvoker) and
agents/{claude,codex,gemini}.py (per-agent build_command/extract_session_id
rules). Three behaviors are carried over verbatim because they encode
real CLI quirks, not incidental detail:

  - delta-merging: consecutive non-reasoning assistant message events
    with IsDelta set are concatenated into one non-delta message before
    being handed to a caller, as base.py's flush_pending/pending_text
    does; other events pass through unmerged.
  - assistant-answer aggregation: every non-empty, non-reasoning
    assistant message (a merged delta run counts as one) replaces the
    current final answer, and the answer it replaces is appended to
    the thought steps, mirroring _process_event's
    final_answer/agent_messages bookkeeping.
  - error classification order: validation failure, then a fatal stderr
    pattern/repeat match, then cancellation, then a System{error} event
    surfacing from stdout itself, then a non-zero exit code, then the
    OpenCode exit-0 stderr check, in that precedence (§4.3).

One deliberate omission: the Python source shields _terminate_subprocess
with asyncio.shield (twice) to survive the caller's own cancellation.
Go does not need this — a goroutine spawned by Invoker is not preempted
by the caller's context, so pkg/process.Process.Terminate always runs
its full TERM/KILL/wait sequence to completion regardless of what the
caller's context does meanwhile.
*/
package invoker

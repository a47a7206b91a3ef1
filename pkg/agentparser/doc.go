/*
Package agentparser implements the Event Parser Set (C2): one stateful
parser per agent kind, each mapping that agent's native JSONL dialect
into the shared types.UnifiedEvent union.

Grounded one-to-one on the original source's shared/parsers/{claude,
codex,gemini,opencode}.py: each Go parser keeps the same per-run state
(session id, model, an operation-id-to-name cache) and applies the same
dispatch-by-type-field logic, translated from Python's dataclass
construction into Go struct literals. Per §9's Design Notes, the four
parsers are plain concrete types behind one small interface — no
inheritance hierarchy — selected by a lookup table keyed on
types.AgentKind.

Anything a parser does not recognise becomes a types.SystemEvent with
IsFallback set, never a dropped event (§3, "Event fidelity").
*/
package agentparser

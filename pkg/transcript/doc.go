// Package transcript builds and appends the §6 handoff transcript
// record: one <agent-output> XML-like block per finished run or
// fan-out task (a fan-out batch's blocks are appended in one write),
// written to a shared file regardless of the run's
// permission level — the transcript is a broker-owned side channel,
// not a capability grant to the agent.
package transcript

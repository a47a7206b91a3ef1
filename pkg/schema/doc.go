// Package schema generates the JSON Schema for each tool the
// Dispatcher exposes and validates incoming call_tool arguments
// against it (§6 "Argument schemas are generated dynamically"). Shape
// validation lives here; the stronger semantic rules (non-blank
// prompt, an existing workspace directory, length-matched fan-out
// arrays) are checked downstream by the Dispatcher, the Fan-out
// Coordinator and the Invoker (§4.6 step 1) — this package
// only rejects arguments jsonschema.org already has a vocabulary for.
package schema

// Package response renders a Dispatcher result into the XML-wrapped
// reply text the broker hands back as the tool call's output: an
// <answer>, an optional <thought_process> trail, the continuation_id
// for resuming the session, and (when requested) <debug_info>. Errors
// get the same envelope with <error>/<partial_answer> in place of a
// clean answer, so every reply — success or failure — is shaped the
// same way for the calling agent to parse.
package response

// Package rpc implements the broker's upstream wire protocol (§6): a
// line-delimited JSON-RPC exchange on the standard streams, accepting
// a list_tools query and a call_tool(name, arguments) request. The
// shape follows the JSON-RPC 2.0 error-code conventions used by
// goa-ai's runtime/mcp caller (ParseError/InvalidRequest/MethodNotFound/
// InvalidParams/InternalError), adapted here for the server side.
package rpc

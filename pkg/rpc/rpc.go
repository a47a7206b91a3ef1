package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/agentbroker/pkg/log"
)

// JSON-RPC canonical error codes, matching goa-ai's runtime/mcp caller.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Request is one line of the upstream line-delimited JSON-RPC stream.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one reply line, written back on the same stream.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result interface{}     `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// ToolDescriptor is one entry in a list_tools reply.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// callToolParams is call_tool's params shape (§6).
type callToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Handler answers the two RPC methods the upstream client issues.
type Handler interface {
	ListTools() []ToolDescriptor
	CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// Serve reads one JSON-RPC request per line from r and writes one
// response per line to w, until r is exhausted or ctx is done; ctx is
// checked after each request line is read, not while waiting on r. Each
// request runs in its own goroutine so a long-running call_tool never
// blocks list_tools or a concurrent call_tool (the broker's requests
// are independent except through the shared Registry); writes to w
// are serialised by a mutex since concurrent handlers share one
// stdout.
func Serve(ctx context.Context, r io.Reader, w io.Writer, h Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var writeMu sync.Mutex
	write := func(resp Response) {
		payload, err := json.Marshal(resp)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		w.Write(payload)
		w.Write([]byte("\n"))
	}

	var wg sync.WaitGroup
	logger := log.WithComponent("rpc")

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			write(Response{Error: &Error{Code: ParseError, Message: err.Error()}})
			continue
		}

		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			handle(ctx, h, req, write)
		}(req)

		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}
	}

	wg.Wait()
	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Msg("stdio read failed")
		return fmt.Errorf("rpc: read: %w", err)
	}
	return nil
}

func handle(ctx context.Context, h Handler, req Request, write func(Response)) {
	switch req.Method {
	case "list_tools":
		write(Response{ID: req.ID, Result: map[string]interface{}{"tools": h.ListTools()}})

	case "call_tool":
		var params callToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			write(Response{ID: req.ID, Error: &Error{Code: InvalidParams, Message: err.Error()}})
			return
		}
		reply, err := h.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			write(Response{ID: req.ID, Error: &Error{Code: InternalError, Message: err.Error()}})
			return
		}
		write(Response{ID: req.ID, Result: map[string]interface{}{"content": reply}})

	default:
		write(Response{ID: req.ID, Error: &Error{Code: MethodNotFound, Message: "unknown method: " + req.Method}})
	}
}

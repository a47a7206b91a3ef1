package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	tools []ToolDescriptor
	reply string
	err   error
}

func (f *fakeHandler) ListTools() []ToolDescriptor { return f.tools }
func (f *fakeHandler) CallTool(_ context.Context, _ string, _ map[string]interface{}) (string, error) {
	return f.reply, f.err
}

func TestServeListTools(t *testing.T) {
	h := &fakeHandler{tools: []ToolDescriptor{{Name: "claude", Description: "run claude"}}}
	in := strings.NewReader(`{"id":1,"method":"list_tools"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, Serve(context.Background(), in, &out, h))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	assert.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	tools := result["tools"].([]interface{})
	assert.Len(t, tools, 1)
}

func TestServeCallTool(t *testing.T) {
	h := &fakeHandler{reply: "<response><answer>ok</answer></response>"}
	in := strings.NewReader(`{"id":2,"method":"call_tool","params":{"name":"claude","arguments":{"prompt":"hi"}}}` + "\n")
	var out bytes.Buffer

	require.NoError(t, Serve(context.Background(), in, &out, h))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Contains(t, result["content"], "ok")
}

func TestServeUnknownMethod(t *testing.T) {
	h := &fakeHandler{}
	in := strings.NewReader(`{"id":3,"method":"bogus"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, Serve(context.Background(), in, &out, h))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestServeParseError(t *testing.T) {
	h := &fakeHandler{}
	in := strings.NewReader("not json\n")
	var out bytes.Buffer

	require.NoError(t, Serve(context.Background(), in, &out, h))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ParseError, resp.Error.Code)
}

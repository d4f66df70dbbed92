package langserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pytype/internal/config"
	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/syntax"
)

func frame(body string) []byte {
	var buf bytes.Buffer
	buf.WriteString("Content-Length: ")
	buf.WriteString(itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	mem := fsutil.NewMemory()
	mem.Put("a.py", []byte("x = 1\n"))
	res := resolver.New(mem, resolver.Roots{SourceRoots: []string{"."}})
	var out bytes.Buffer
	srv := NewServer(&config.Config{}, mem, res, syntax.DefaultDialect(), &out)
	return srv, &out
}

func TestReadMessageParsesContentLengthFramedBody(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(frame(`{"hello":"world"}`)))
	body, err := readMessage(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(body))
}

func TestReadMessageErrorsWithoutContentLengthHeader(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("\r\n{}")))
	_, err := readMessage(r)
	assert.Error(t, err)
}

func TestServeRespondsToInitializeWithCapabilities(t *testing.T) {
	srv, out := newTestServer(t)
	req := frame(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	err := srv.Serve(context.Background(), bytes.NewReader(req))
	require.NoError(t, err)

	resp := readResponse(t, out)
	assert.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), "hoverProvider")
}

func TestServeRespondsWithMethodNotFoundForUnknownMethod(t *testing.T) {
	srv, out := newTestServer(t)
	req := frame(`{"jsonrpc":"2.0","id":2,"method":"textDocument/bogus","params":{}}`)
	err := srv.Serve(context.Background(), bytes.NewReader(req))
	require.NoError(t, err)

	resp := readResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestServeHandlesHoverRequestAgainstTrackedFile(t *testing.T) {
	srv, out := newTestServer(t)
	req := frame(`{"jsonrpc":"2.0","id":3,"method":"textDocument/hover","params":{"textDocument":{"uri":"a.py"},"position":{"line":0,"character":0}}}`)

	require.NoError(t, srv.queries.Prog.SetTrackedFiles([]string{"a.py"}))
	err := srv.Serve(context.Background(), bytes.NewReader(req))
	require.NoError(t, err)

	resp := readResponse(t, out)
	assert.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), "x:")
}

func TestServeExitsOnExitNotificationWithoutError(t *testing.T) {
	srv, _ := newTestServer(t)
	req := frame(`{"jsonrpc":"2.0","method":"exit"}`)
	err := srv.Serve(context.Background(), bytes.NewReader(req))
	assert.NoError(t, err)
}

func TestDispatchNotificationDidOpenPopulatesOverlay(t *testing.T) {
	srv, _ := newTestServer(t)
	raw := []byte(`{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{"textDocument":{"uri":"a.py","text":"y = 2\n"}}}`)
	srv.dispatchNotification("textDocument/didOpen", raw)

	content, err := srv.overlay.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, "y = 2\n", string(content))
}

func TestDispatchNotificationDidCloseRemovesOverlayEntry(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.overlay.Open("a.py", []byte("y = 2\n"))
	raw := []byte(`{"jsonrpc":"2.0","method":"textDocument/didClose","params":{"textDocument":{"uri":"a.py"}}}`)
	srv.dispatchNotification("textDocument/didClose", raw)

	content, err := srv.overlay.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))
}

// rpcResponse mirrors responseMessage but keeps Result as raw JSON so tests
// can assert on its serialized shape without knowing the concrete Go type
// dispatchRequest produced.
type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *errorObject    `json:"error"`
}

func readResponse(t *testing.T, out *bytes.Buffer) rpcResponse {
	t.Helper()
	r := bufio.NewReader(out)
	body, err := readMessage(r)
	require.NoError(t, err)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

package langserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/oxhq/pytype/internal/config"
	"github.com/oxhq/pytype/internal/fsutil"
	"github.com/oxhq/pytype/internal/program"
	"github.com/oxhq/pytype/internal/resolver"
	"github.com/oxhq/pytype/internal/sourcefile"
	"github.com/oxhq/pytype/internal/syntax"
	"github.com/oxhq/pytype/internal/writer"
)

// asResult adapts a Queries handler's (value, error) return into the
// (any, *errorObject) shape dispatchRequest needs, so each handler case
// below stays a one-liner.
func asResult[T any](v T, err error) (any, *errorObject) {
	if err != nil {
		return nil, &errorObject{Code: codeInternalError, Message: err.Error()}
	}
	return v, nil
}

// requestMessage/responseMessage/notificationMessage mirror the JSON-RPC 2.0
// envelope the teacher's mcp package frames over stdio (mcp/protocol.go's
// RequestMessage/ResponseMessage/NotificationMessage); LSP requires
// Content-Length-prefixed framing rather than MCP's newline-delimited one
// (see writeMessage/readMessage below), but the envelope shape and the
// decode-then-dispatch loop in Server.Serve are the same pattern as
// mcp/server.go's StdioServer.Start.
type requestMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type responseMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *errorObject    `json:"error,omitempty"`
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Server is the LSP host: one per client connection, wired to a single
// Program/resolver/writer triple and an overlayFS so edited-but-unsaved
// buffers take precedence over disk (spec.md §5).
type Server struct {
	queries *Queries
	overlay *overlayFS

	out   io.Writer
	outMu sync.Mutex

	shutdownRequested bool
}

// NewServer builds a Server around a fresh Program rooted at a project
// directory resolved the same way cmd/pytype resolves one (spec.md §5
// "the language server... drives the same Program").
func NewServer(cfg *config.Config, disk fsutil.Writable, res *resolver.Resolver, dialect syntax.Dialect, out io.Writer) *Server {
	overlay := newOverlayFS(disk)
	prog := program.New(overlay, res, dialect)
	return &Server{
		queries: &Queries{Prog: prog, Res: res, W: writer.New(disk)},
		overlay: overlay,
		out:     out,
	}
}

// Serve runs the read-dispatch-write loop over in/out until the client
// closes the connection or sends `exit` (spec.md §5 lifecycle), the same
// shape as the teacher's StdioServer.Start but framed with LSP's
// Content-Length headers instead of MCP's newline-delimited JSON.
func (s *Server) Serve(ctx context.Context, in io.Reader) error {
	r := bufio.NewReader(in)
	for {
		raw, err := readMessage(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("langserver: reading message: %w", err)
		}

		var env struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			s.writeError(nil, codeParseError, "invalid JSON-RPC message")
			continue
		}

		if env.Method == "" {
			continue // a response to a server->client request we don't issue yet
		}

		if len(env.ID) == 0 {
			s.dispatchNotification(env.Method, raw)
			if env.Method == "exit" {
				return nil
			}
			continue
		}

		var req requestMessage
		if err := json.Unmarshal(raw, &req); err != nil {
			s.writeError(nil, codeInvalidRequest, "malformed request")
			continue
		}
		result, rpcErr := s.dispatchRequest(req.Method, req.Params)
		if rpcErr != nil {
			s.writeError(req.ID, rpcErr.Code, rpcErr.Message)
			continue
		}
		s.writeResult(req.ID, result)
	}
}

func (s *Server) dispatchRequest(method string, params json.RawMessage) (any, *errorObject) {
	switch method {
	case "initialize":
		return map[string]any{
			"capabilities": map[string]any{
				"textDocumentSync":   1,
				"hoverProvider":      true,
				"definitionProvider": true,
				"referencesProvider": true,
				"renameProvider":     true,
				"completionProvider": map[string]any{},
				"signatureHelpProvider": map[string]any{
					"triggerCharacters": []string{"(", ","},
				},
				"documentSymbolProvider": true,
				"codeActionProvider":     true,
			},
		}, nil
	case "shutdown":
		s.shutdownRequested = true
		return nil, nil
	case "textDocument/hover":
		var p textDocPositionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.Hover(p.TextDocument.URI, p.Position))
	case "textDocument/definition":
		var p textDocPositionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.Definition(p.TextDocument.URI, p.Position))
	case "textDocument/references":
		var p textDocPositionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.References(p.TextDocument.URI, p.Position))
	case "textDocument/documentSymbol":
		var p struct {
			TextDocument struct{ URI string } `json:"textDocument"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.DocumentSymbols(p.TextDocument.URI))
	case "textDocument/completion":
		var p textDocPositionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.Completion(p.TextDocument.URI, p.Position))
	case "textDocument/signatureHelp":
		var p textDocPositionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.SignatureHelp(p.TextDocument.URI, p.Position))
	case "textDocument/rename":
		var p struct {
			TextDocument struct{ URI string } `json:"textDocument"`
			Position     Position             `json:"position"`
			NewName      string               `json:"newName"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		return asResult(s.queries.Rename(p.TextDocument.URI, p.Position, p.NewName))
	case "textDocument/codeAction":
		var p struct {
			TextDocument struct{ URI string } `json:"textDocument"`
			Range        Range                `json:"range"`
			Context      struct {
				Only []string `json:"only"`
			} `json:"context"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errorObject{Code: codeInvalidParams, Message: err.Error()}
		}
		kind := ActionOrganizeImports
		if len(p.Context.Only) > 0 {
			kind = CodeActionKind(p.Context.Only[0])
		}
		return asResult(s.queries.CodeAction(p.TextDocument.URI, p.Range.Start, kind))
	default:
		return nil, &errorObject{Code: codeMethodNotFound, Message: "method not found: " + method}
	}
}

func (s *Server) dispatchNotification(method string, raw json.RawMessage) {
	switch method {
	case "textDocument/didOpen":
		var env struct {
			Params struct {
				TextDocument struct {
					URI  string `json:"uri"`
					Text string `json:"text"`
				} `json:"textDocument"`
			} `json:"params"`
		}
		if json.Unmarshal(raw, &env) == nil {
			s.overlay.Open(env.Params.TextDocument.URI, []byte(env.Params.TextDocument.Text))
			_ = s.queries.Prog.MarkDirty(env.Params.TextDocument.URI, sourcefile.ContentChanged)
		}
	case "textDocument/didChange":
		var env struct {
			Params struct {
				TextDocument struct {
					URI string `json:"uri"`
				} `json:"textDocument"`
				ContentChanges []struct {
					Text string `json:"text"`
				} `json:"contentChanges"`
			} `json:"params"`
		}
		if json.Unmarshal(raw, &env) == nil && len(env.Params.ContentChanges) > 0 {
			last := env.Params.ContentChanges[len(env.Params.ContentChanges)-1]
			s.overlay.Change(env.Params.TextDocument.URI, []byte(last.Text))
			_ = s.queries.Prog.MarkDirty(env.Params.TextDocument.URI, sourcefile.ContentChanged)
		}
	case "textDocument/didClose":
		var env struct {
			Params struct {
				TextDocument struct {
					URI string `json:"uri"`
				} `json:"textDocument"`
			} `json:"params"`
		}
		if json.Unmarshal(raw, &env) == nil {
			s.overlay.Close(env.Params.TextDocument.URI)
		}
	case "exit":
		// handled by the caller once dispatchNotification returns
	}
}

type textDocPositionParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Position Position `json:"position"`
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.writeMessage(responseMessage{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id json.RawMessage, code int, msg string) {
	s.writeMessage(responseMessage{JSONRPC: "2.0", ID: id, Error: &errorObject{Code: code, Message: msg}})
}

func (s *Server) writeMessage(msg responseMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n", len(data))
	s.out.Write(data)
}

// readMessage reads one LSP frame: a Content-Length header block followed by
// a blank line and exactly that many bytes of JSON body.
func readMessage(r *bufio.Reader) ([]byte, error) {
	var length int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(line[len("Content-Length:"):]))
			if err != nil {
				return nil, fmt.Errorf("langserver: bad Content-Length header %q: %w", line, err)
			}
			length = n
		}
	}
	if length == 0 {
		return nil, fmt.Errorf("langserver: missing Content-Length header")
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

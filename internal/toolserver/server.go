// Package toolserver exposes the memory subsystem as MCP tools over
// stdio, so the out-of-process content agents reach shared memory the
// same way they reach any other tool.
package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/memory"
	"github.com/toolline/agent-memory/internal/store"
)

const jsonRPCVersion = "2.0"

// RequestLogSink receives summarized request events for observability.
type RequestLogSink interface {
	InsertToolRequestLog(ctx context.Context, rec store.ToolRequestLog) error
}

// Server handles JSON-RPC messages over stdio.
type Server struct {
	svc    *memory.Service
	tools  *toolHandler
	logger *log.Logger
	sink   RequestLogSink

	requests uint64
	errors   uint64
}

// NewServer creates a tool server. sink may be nil when the store
// backend has no request log.
func NewServer(svc *memory.Service, logger *log.Logger, sink RequestLogSink) *Server {
	return &Server{svc: svc, tools: newToolHandler(svc, logger), logger: logger, sink: sink}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Serve reads requests from in and writes responses to out until EOF or
// cancellation.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	br := bufio.NewReader(in)
	bw := bufio.NewWriter(out)
	defer bw.Flush()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, mode, err := readMessage(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.logger.Warn("invalid JSON-RPC request", "error", err)
			resp := errorResponse(nil, -32700, "parse error", err.Error())
			s.recordRequest(ctx, request{Method: "parse_error"}, resp, 0)
			if werr := writeMessage(bw, resp, mode); werr != nil {
				return werr
			}
			continue
		}

		started := time.Now()
		resp, shouldRespond := s.handle(ctx, req)
		s.recordRequest(ctx, req, resp, time.Since(started))
		if !shouldRespond {
			continue
		}
		if err := writeMessage(bw, resp, mode); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, req request) (response, bool) {
	atomic.AddUint64(&s.requests, 1)

	hasID := len(req.ID) > 0
	id := decodeID(req.ID)

	if req.Method == "notifications/initialized" {
		return response{}, false
	}

	switch req.Method {
	case "initialize":
		var p struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		_ = json.Unmarshal(req.Params, &p)
		pv := p.ProtocolVersion
		if strings.TrimSpace(pv) == "" {
			pv = "2024-11-05"
		}
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{
			"protocolVersion": pv,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]any{
				"name":    "agent-memory",
				"version": "0.1.0",
			},
		}}, hasID
	case "ping":
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{}}, hasID
	case "tools/list":
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{"tools": toolDefinitions()}}, hasID
	case "tools/call":
		res, err := s.tools.call(ctx, req.Params)
		if err != nil {
			atomic.AddUint64(&s.errors, 1)
			return response{JSONRPC: jsonRPCVersion, ID: id, Result: map[string]any{
				"content": []map[string]any{{"type": "text", "text": err.Error()}},
				"isError": true,
			}}, hasID
		}
		return response{JSONRPC: jsonRPCVersion, ID: id, Result: res}, hasID
	default:
		if !hasID {
			return response{}, false
		}
		return errorResponse(id, -32601, "method not found", req.Method), true
	}
}

func (s *Server) recordRequest(ctx context.Context, req request, resp response, duration time.Duration) {
	if s.sink == nil {
		return
	}
	rec := store.ToolRequestLog{
		Method:     strings.TrimSpace(req.Method),
		ToolName:   toolNameFromParams(req.Method, req.Params),
		Success:    responseSuccessful(resp),
		ErrorText:  responseErrorText(resp),
		DurationMS: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if rec.Method == "" {
		rec.Method = "unknown"
	}
	if err := s.sink.InsertToolRequestLog(ctx, rec); err != nil {
		s.logger.Warn("failed to persist tool request log", "error", err)
	}
}

func toolNameFromParams(method string, params json.RawMessage) string {
	if method != "tools/call" || len(params) == 0 {
		return ""
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return ""
	}
	return strings.TrimSpace(in.Name)
}

func responseSuccessful(resp response) bool {
	if resp.Error != nil {
		return false
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		return true
	}
	isError, ok := result["isError"].(bool)
	return !ok || !isError
}

func responseErrorText(resp response) string {
	if resp.Error != nil {
		return strings.TrimSpace(resp.Error.Message)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		return ""
	}
	isError, ok := result["isError"].(bool)
	if !ok || !isError {
		return ""
	}
	content, ok := result["content"].([]map[string]any)
	if !ok || len(content) == 0 {
		return "tool call failed"
	}
	text, _ := content[0]["text"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return "tool call failed"
	}
	return text
}

func errorResponse(id any, code int, msg string, data any) response {
	return response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &rpcError{Code: code, Message: msg, Data: data},
	}
}

func decodeID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// Snapshot returns server counters for dashboards.
func (s *Server) Snapshot() map[string]any {
	return map[string]any{
		"requests": atomic.LoadUint64(&s.requests),
		"errors":   atomic.LoadUint64(&s.errors),
		"ts":       time.Now().UTC(),
	}
}

// Wire handling. Clients speak either Content-Length framed messages or
// newline-delimited JSON; replies mirror whichever arrived.

type wireMode int

const (
	wireModeFramed wireMode = iota
	wireModeJSONLine
)

func readMessage(r *bufio.Reader) ([]byte, wireMode, error) {
	mode, err := detectWireMode(r)
	if err != nil {
		return nil, wireModeFramed, err
	}
	if mode == wireModeJSONLine {
		return readJSONLineMessage(r)
	}
	payload, err := readFramedMessage(r)
	return payload, wireModeFramed, err
}

func detectWireMode(r *bufio.Reader) (wireMode, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return wireModeFramed, err
		}
		if !unicode.IsSpace(rune(b[0])) {
			break
		}
		_, _ = r.ReadByte()
	}

	peek, err := r.Peek(16)
	if err != nil && !errors.Is(err, bufio.ErrBufferFull) && !errors.Is(err, io.EOF) {
		return wireModeFramed, err
	}
	if strings.HasPrefix(strings.ToLower(string(peek)), "content-length:") {
		return wireModeFramed, nil
	}
	return wireModeJSONLine, nil
}

func readJSONLineMessage(r *bufio.Reader) ([]byte, wireMode, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, wireModeJSONLine, err
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		if errors.Is(err, io.EOF) {
			return nil, wireModeJSONLine, io.EOF
		}
		return readJSONLineMessage(r)
	}
	return line, wireModeJSONLine, nil
}

func readFramedMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength <= 0 {
		return nil, fmt.Errorf("missing or invalid Content-Length")
	}

	buf := make([]byte, contentLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeMessage(w *bufio.Writer, msg response, mode wireMode) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if mode == wireModeJSONLine {
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		return w.Flush()
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return w.Flush()
}

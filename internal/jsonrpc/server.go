package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fitstack/whoop-mcp/internal/logging"
)

const (
	// DefaultReadTimeout is how long a connection may sit idle before
	// it is closed.
	DefaultReadTimeout = 60 * time.Second

	// maxLineSize bounds a single request line.
	maxLineSize = 1 << 20
)

// HandlerFunc handles a single JSON-RPC method call. Returning an *Error
// controls the error code sent to the client; any other error maps to
// -32603.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server is a line-oriented JSON-RPC 2.0 server over TCP.
type Server struct {
	name        string
	version     string
	readTimeout time.Duration
	logger      *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a TCP JSON-RPC server. The built-in methods
// initialize, echo, and shutdown are always available.
func NewServer(name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		name:        name,
		version:     version,
		readTimeout: DefaultReadTimeout,
		logger:      logging.WithTransport(logger, "tcp"),
		handlers:    make(map[string]HandlerFunc),
	}
}

// Register adds a method handler. Registering a built-in method name is
// not allowed and is silently ignored.
func (s *Server) Register(method string, fn HandlerFunc) {
	switch method {
	case "initialize", "echo", "shutdown":
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Methods returns the registered method names, excluding built-ins.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		methods = append(methods, name)
	}
	return methods
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.listener = ln
	s.logger.Info("tcp server listening", slog.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("accept failed", logging.Err(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.wg.Wait()
	return nil
}

// handleConn serves one connection. Requests are newline-delimited; each
// request gets exactly one response line.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("client connected", slog.String("remote", remote))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				s.logger.Debug("client read ended", slog.String("remote", remote), logging.Err(err))
			}
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp, closeAfter := s.handleLine(ctx, line)
		if err := s.writeResponse(conn, resp); err != nil {
			s.logger.Warn("write failed", slog.String("remote", remote), logging.Err(err))
			return
		}
		if closeAfter {
			return
		}
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

// handleLine dispatches one raw request line. The bool result reports
// whether the connection should close after the response is written.
func (s *Server) handleLine(ctx context.Context, line []byte) (*Response, bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return newErrorResponse(nil, &Error{
			Code:    CodeParseError,
			Message: "Parse error",
			Data:    err.Error(),
		}), false
	}

	if req.JSONRPC != "2.0" {
		return newErrorResponse(req.ID, NewError(CodeInvalidRequest, "Invalid Request: not JSON-RPC 2.0")), false
	}
	if req.Method == "" {
		return newErrorResponse(req.ID, NewError(CodeInvalidRequest, "Invalid Request: no method specified")), false
	}

	s.logger.Debug("request", slog.String("method", req.Method))

	switch req.Method {
	case "initialize":
		return newResponse(req.ID, s.initializeResult()), false
	case "echo":
		return newResponse(req.ID, echoResult(req.Params)), false
	case "shutdown":
		return newResponse(req.ID, map[string]string{"status": "shutting down"}), true
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return newErrorResponse(req.ID, NewError(CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))), false
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return newErrorResponse(req.ID, rpcErr), false
		}
		return newErrorResponse(req.ID, &Error{
			Code:    CodeInternalError,
			Message: "Internal error",
			Data:    err.Error(),
		}), false
	}

	return newResponse(req.ID, result), false
}

func (s *Server) initializeResult() map[string]any {
	return map[string]any{
		"capabilities": map[string]any{
			"server": map[string]string{
				"name":    s.name,
				"version": s.version,
			},
			"tools": s.Methods(),
		},
	}
}

func echoResult(params json.RawMessage) map[string]string {
	var p struct {
		Text string `json:"text"`
	}
	text := "No text provided"
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err == nil && p.Text != "" {
			text = p.Text
		}
	}
	return map[string]string{"text": "Echo: " + text}
}

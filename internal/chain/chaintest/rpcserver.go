// Package chaintest provides an in-process JSON-RPC endpoint for tests of
// code built on go-ethereum clients.
package chaintest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MethodNotFound is the JSON-RPC error code for unknown methods.
const MethodNotFound = -32601

// Error is a JSON-RPC error returned by a handler.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Handler answers one JSON-RPC method.
type Handler func(params []json.RawMessage) (any, error)

// Server is a fake JSON-RPC node.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// NewServer starts a fake node and closes it when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{handlers: make(map[string]Handler), calls: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a method handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Result registers a handler that always answers with v.
func (s *Server) Result(method string, v any) {
	s.Handle(method, func([]json.RawMessage) (any, error) { return v, nil })
}

// Calls reports how many times method was invoked.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &rpcError{Code: MethodNotFound, Message: "the method " + req.Method + " does not exist/is not available"}
	} else if result, err := h(req.Params); err != nil {
		code := -32000
		if rpcErr, ok := err.(*Error); ok {
			code = rpcErr.Code
		}
		resp.Error = &rpcError{Code: code, Message: err.Error()}
	} else if raw, err := json.Marshal(result); err != nil {
		resp.Error = &rpcError{Code: -32603, Message: err.Error()}
	} else {
		resp.Result = raw
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

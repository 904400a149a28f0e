// Package kubotest runs a minimal Kubo HTTP RPC endpoint for tests. It
// understands the commands the store uses (add, pin/add, cat, version) and
// keeps content in an in-memory embedded node.
package kubotest

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/singnet/snet-docstore-go/pkg/storage"
)

// Server is a fake Kubo RPC endpoint.
type Server struct {
	*httptest.Server
	Node *storage.EmbeddedNode

	down    atomic.Bool
	mu      sync.Mutex
	calls   map[string]int
	queries map[string]url.Values
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Node:    storage.NewMemoryNode(),
		calls:   make(map[string]int),
		queries: make(map[string]url.Values),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.Server.Close()
		_ = s.Node.Close()
	})
	return s
}

// SetDown makes every command fail with a 500 until called with false.
func (s *Server) SetDown(down bool) { s.down.Store(down) }

// Calls returns how many times command was invoked.
func (s *Server) Calls(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[command]
}

// LastQuery returns the query parameters of the latest command invocation,
// or nil when it was never called.
func (s *Server) LastQuery(command string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[command]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	command := strings.TrimPrefix(r.URL.Path, "/api/v0/")
	s.mu.Lock()
	s.calls[command]++
	s.queries[command] = r.URL.Query()
	s.mu.Unlock()

	if s.down.Load() {
		writeError(w, http.StatusInternalServerError, "node unavailable")
		return
	}

	ctx := r.Context()
	arg := r.URL.Query().Get("arg")

	switch command {
	case "version":
		writeJSON(w, map[string]string{"Version": "0.36.0-kubotest"})
	case "add":
		data, err := readFilePart(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.Node.Add(ctx, data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]string{"Name": id, "Hash": id, "Size": strconv.Itoa(len(data))})
	case "pin/add":
		if err := s.Node.Pin(ctx, arg); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, map[string]any{"Pins": []string{arg}})
	case "cat":
		data, err := s.Node.Cat(ctx, arg)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func readFilePart(r *http.Request) ([]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no file part in request")
		}
		if err != nil {
			return nil, err
		}
		mt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if mt == "application/x-directory" {
			continue
		}
		return io.ReadAll(part)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"Message": msg, "Code": 0, "Type": "error"})
}

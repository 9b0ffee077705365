// Package devserver rebuilds on file changes and serves the latest artifact.
//
// The server has two states. While Idle it serves the most recent artifact.
// A change notification moves it to Rebuilding; requests keep being answered
// from the previous artifact until the new one is fully written. A failed
// rebuild is logged and the previous artifact stays in service.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/merlin/internal/ctxlog"
	"github.com/vk/merlin/internal/optimize"
)

// EventsPath is where pages connect for reload notifications.
const EventsPath = "/__merlin/events"

// StatusPath reports the build state as JSON.
const StatusPath = "/__merlin/status"

// State is the rebuild state.
type State int32

const (
	Idle State = iota
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// BuildFunc runs one full pipeline and returns the written artifact.
type BuildFunc func(ctx context.Context) (*optimize.Artifact, error)

// Options configure a Server.
type Options struct {
	// LiveReload enables the websocket endpoint at EventsPath.
	LiveReload bool
}

// Server is the incremental build coordinator and its HTTP transport.
type Server struct {
	build BuildFunc
	hub   *Hub
	mux   *http.ServeMux

	// buildMu serializes rebuilds.
	buildMu sync.Mutex
	state   atomic.Int32
	// current and previous are swapped together after each good build.
	current  atomic.Pointer[optimize.Artifact]
	previous atomic.Pointer[optimize.Artifact]
	lastErr  atomic.Pointer[string]
	builds   atomic.Int64

	trigger chan struct{}
}

// New creates a Server that builds with build.
func New(build BuildFunc, opts Options) *Server {
	s := &Server{
		build:   build,
		hub:     NewHub(),
		mux:     http.NewServeMux(),
		trigger: make(chan struct{}, 1),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc(StatusPath, s.handleStatus)
	if opts.LiveReload {
		s.mux.Handle(EventsPath, s.hub)
	}
	s.mux.HandleFunc("/", s.handleArtifact)
	return s
}

// State returns the current state.
func (s *Server) State() State { return State(s.state.Load()) }

// Artifact returns the artifact being served, or nil before the first good build.
func (s *Server) Artifact() *optimize.Artifact { return s.current.Load() }

// Builds returns the number of rebuilds attempted.
func (s *Server) Builds() int64 { return s.builds.Load() }

// Hub returns the reload notification hub.
func (s *Server) Hub() *Hub { return s.hub }

// Rebuild runs the pipeline once. Concurrent calls are serialized. On
// success the new artifact replaces the served one and pages are told to
// reload; on failure the served artifact is left untouched.
func (s *Server) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	logger := ctxlog.FromContext(ctx)

	s.state.Store(int32(Rebuilding))
	defer s.state.Store(int32(Idle))
	s.builds.Add(1)

	start := time.Now()
	a, err := s.build(ctx)
	if err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		logger.Error("Rebuild failed; still serving the last good build.", "error", err)
		return err
	}
	if a == nil {
		err := errors.New("build returned no artifact")
		msg := err.Error()
		s.lastErr.Store(&msg)
		logger.Error("Rebuild failed; still serving the last good build.", "error", err)
		return err
	}

	s.previous.Store(s.current.Load())
	s.current.Store(a)
	s.lastErr.Store(nil)
	logger.Info("Rebuild complete.", "bundle", a.Bundle.Name, "hash", a.Hash, "duration", time.Since(start))
	s.hub.Broadcast(MessageRebuilt)
	return nil
}

// Notify requests a rebuild for a batch of changed paths. It never blocks;
// notifications arriving while a rebuild is queued collapse into it.
func (s *Server) Notify(paths []string) {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run performs rebuilds requested through Notify until ctx is cancelled. A
// notification that arrives during a rebuild starts another one as soon as
// the current one finishes.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.trigger:
			if err := s.Rebuild(ctx); err != nil && ctx.Err() != nil {
				return nil
			}
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctxlog.WithLogger(context.Background(), logger)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Dev server listening.", "address", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dev server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down dev server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctxlog.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Status is the body of StatusPath.
type Status struct {
	State     string `json:"state"`
	Hash      string `json:"hash,omitempty"`
	Bundle    string `json:"bundle,omitempty"`
	LastError string `json:"lastError,omitempty"`
	Builds    int64  `json:"builds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := Status{State: s.State().String(), Builds: s.Builds()}
	if a := s.current.Load(); a != nil {
		st.Hash = a.Hash
		st.Bundle = a.Bundle.Name
	}
	if msg := s.lastErr.Load(); msg != nil {
		st.LastError = *msg
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(st) //nolint:errcheck // client went away
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a := s.current.Load()
	if a == nil {
		http.Error(w, "no successful build yet", http.StatusServiceUnavailable)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	name = strings.TrimSuffix(name, optimize.CompressedSuffix)
	if name == "" {
		name = a.HTML.Name
	}
	f, ok := a.Lookup(name)
	if !ok {
		// Pages loaded just before a rebuild still ask for the old bundle.
		if prev := s.previous.Load(); prev != nil {
			f, ok = prev.Lookup(name)
		}
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	h := w.Header()
	h.Set("Content-Type", optimize.ContentType(f.Name))
	h.Set("Content-Encoding", optimize.Encoding)
	h.Set("Content-Length", fmt.Sprint(len(f.Compressed)))
	h.Set("Vary", "Accept-Encoding")
	if f.Name == a.HTML.Name {
		h.Set("Cache-Control", "no-cache")
	} else {
		h.Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(f.Compressed) //nolint:errcheck // client went away
}

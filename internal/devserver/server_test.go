package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/merlin/internal/optimize"
)

func compress(t *testing.T, s string) []byte {
	t.Helper()
	out, err := optimize.NewBrotli(1).Compress([]byte(s))
	require.NoError(t, err)
	return out
}

func decompress(t *testing.T, b []byte) string {
	t.Helper()
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(b)))
	require.NoError(t, err)
	return string(out)
}

func artifact(t *testing.T, hash string) *optimize.Artifact {
	bundle := "app." + hash + ".js"
	return &optimize.Artifact{
		Hash:   hash,
		Bundle: optimize.File{Name: bundle, Content: []byte("code " + hash), Compressed: compress(t, "code "+hash)},
		Map:    optimize.File{Name: bundle + ".map", Content: []byte("{}"), Compressed: compress(t, `{"v":"`+hash+`"}`)},
		HTML:   optimize.File{Name: "index.html", Content: []byte("<html>"), Compressed: compress(t, `<script src="`+bundle+`">`)},
	}
}

// scripted returns successive results and can hold a build open.
type scripted struct {
	mu      sync.Mutex
	results []func() (*optimize.Artifact, error)
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
}

func (s *scripted) build(ctx context.Context) (*optimize.Artifact, error) {
	n := int(s.calls.Add(1))
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n-1 < len(s.results) {
		return s.results[n-1]()
	}
	return s.results[len(s.results)-1]()
}

func ok(a *optimize.Artifact) func() (*optimize.Artifact, error) {
	return func() (*optimize.Artifact, error) { return a, nil }
}

func fail(msg string) func() (*optimize.Artifact, error) {
	return func() (*optimize.Artifact, error) { return nil, errors.New(msg) }
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServeBeforeFirstBuild(t *testing.T) {
	s := New((&scripted{results: []func() (*optimize.Artifact, error){fail("x")}}).build, Options{})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/").Code)
	assert.Equal(t, Idle, s.State())
}

func TestServeArtifactWithEncoding(t *testing.T) {
	a := artifact(t, "h1")
	s := New((&scripted{results: []func() (*optimize.Artifact, error){ok(a)}}).build, Options{})
	require.NoError(t, s.Rebuild(context.Background()))

	tests := []struct {
		path, contentType, body, cache string
	}{
		{"/", "text/html; charset=utf-8", `<script src="app.h1.js">`, "no-cache"},
		{"/index.html", "text/html; charset=utf-8", `<script src="app.h1.js">`, "no-cache"},
		{"/app.h1.js", "application/javascript; charset=utf-8", "code h1", "public, max-age=31536000, immutable"},
		{"/app.h1.js.br", "application/javascript; charset=utf-8", "code h1", "public, max-age=31536000, immutable"},
		{"/app.h1.js.map", "application/json; charset=utf-8", `{"v":"h1"}`, "public, max-age=31536000, immutable"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, s, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
			assert.Equal(t, tt.cache, rec.Header().Get("Cache-Control"))
			assert.Equal(t, tt.body, decompress(t, rec.Body.Bytes()))
		})
	}

	assert.Equal(t, http.StatusNotFound, get(t, s, "/missing.js").Code)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/app.h1.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestFailedRebuildKeepsLastGoodArtifact(t *testing.T) {
	b := &scripted{results: []func() (*optimize.Artifact, error){ok(artifact(t, "good")), fail("transform error: /src/a.js: boom")}}
	s := New(b.build, Options{})
	ctx := context.Background()

	require.NoError(t, s.Rebuild(ctx))
	require.Error(t, s.Rebuild(ctx))

	assert.Equal(t, "good", s.Artifact().Hash)
	rec := get(t, s, "/app.good.js")
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.Unmarshal(get(t, s, StatusPath).Body.Bytes(), &st))
	assert.Equal(t, Status{State: "idle", Hash: "good", Bundle: "app.good.js", LastError: "transform error: /src/a.js: boom", Builds: 2}, st)
}

func TestRequestsDuringRebuildGetPreviousArtifact(t *testing.T) {
	b := &scripted{results: []func() (*optimize.Artifact, error){ok(artifact(t, "old")), ok(artifact(t, "new"))}}
	s := New(b.build, Options{})
	ctx := context.Background()
	require.NoError(t, s.Rebuild(ctx))

	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- s.Rebuild(ctx) }()
	<-b.started

	assert.Equal(t, Rebuilding, s.State())
	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decompress(t, rec.Body.Bytes()), "app.old.js")

	var st Status
	require.NoError(t, json.Unmarshal(get(t, s, StatusPath).Body.Bytes(), &st))
	assert.Equal(t, "rebuilding", st.State)

	close(b.gate)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, s.State())
	assert.Contains(t, decompress(t, get(t, s, "/").Body.Bytes()), "app.new.js")

	// The previous bundle stays reachable for pages that loaded the old shell.
	assert.Equal(t, http.StatusOK, get(t, s, "/app.old.js").Code)
}

func TestRunCoalescesNotifications(t *testing.T) {
	b := &scripted{results: []func() (*optimize.Artifact, error){ok(artifact(t, "a"))}}
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 8)
	s := New(b.build, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	s.Notify([]string{"/src/a.js"})
	<-b.started

	// Changes during the rebuild queue exactly one follow-up.
	for range 5 {
		s.Notify([]string{"/src/b.js"})
	}
	b.gate <- struct{}{}
	<-b.started
	b.gate <- struct{}{}

	require.Eventually(t, func() bool { return s.State() == Idle && s.Builds() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), b.calls.Load())

	cancel()
	assert.NoError(t, <-runDone)
}

func TestHealth(t *testing.T) {
	s := New(func(context.Context) (*optimize.Artifact, error) { return nil, nil }, Options{})
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestNilArtifactIsAFailure(t *testing.T) {
	s := New(func(context.Context) (*optimize.Artifact, error) { return nil, nil }, Options{})
	assert.Error(t, s.Rebuild(context.Background()))
	assert.Nil(t, s.Artifact())
}

func TestLiveReloadBroadcast(t *testing.T) {
	b := &scripted{results: []func() (*optimize.Artifact, error){ok(artifact(t, "one")), ok(artifact(t, "two"))}}
	s := New(b.build, Options{LiveReload: true})
	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Rebuild(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, MessageRebuilt, string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return s.Hub().Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventsDisabledWithoutLiveReload(t *testing.T) {
	s := New((&scripted{results: []func() (*optimize.Artifact, error){ok(artifact(t, "x"))}}).build, Options{})
	require.NoError(t, s.Rebuild(context.Background()))
	assert.Equal(t, http.StatusNotFound, get(t, s, EventsPath).Code)
}

func TestListenAndServeShutsDownOnCancel(t *testing.T) {
	s := New((&scripted{results: []func() (*optimize.Artifact, error){ok(artifact(t, "x"))}}).build, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

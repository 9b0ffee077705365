package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/vk/merlin/internal/config"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an App with debug logging captured in a buffer. Set
// MERLIN_TEST_LOGS=true to print the captured log when the test ends.
func SetupAppTest(t *testing.T, cfg *config.Model, opts Options) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	opts.LogLevel = "debug"
	testApp, err := New(logBuffer, cfg, opts)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("MERLIN_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}

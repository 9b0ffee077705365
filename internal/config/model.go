package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/vk/merlin/internal/builderr"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "merlin.hcl"

// Model is the unified configuration of one bundler invocation.
type Model struct {
	// Roots are the directories discovery crawls.
	Roots []string
	// Extensions are scanned file extensions without leading dots.
	Extensions []string
	Entry      string
	// Workers sizes the transform pool; 0 means runtime.NumCPU().
	Workers    int
	IgnoreDirs []string
	Output     Output
	Transform  Transform
	Dev        Dev
	// Publish is nil when artifacts are not uploaded.
	Publish *Publish
}

// Output names the artifact set.
type Output struct {
	Dir    string
	Bundle string
	HTML   string
	Title  string
}

// Transform configures syntax lowering and minification.
type Transform struct {
	Target    string
	Minify    bool
	CacheSize int
	// BrotliLevel is the compression quality, 0 through 11.
	BrotliLevel int
}

// Dev configures the development server.
type Dev struct {
	Address    string
	Debounce   time.Duration
	LiveReload bool
}

// Publish locates the S3-compatible bucket artifacts are uploaded to.
type Publish struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Default returns a model with every default applied, rooted at dir.
func Default(dir string) *Model {
	return &Model{
		Roots:      []string{dir},
		Extensions: []string{"js"},
		Workers:    runtime.NumCPU(),
		Output: Output{
			Dir:    dir,
			Bundle: "bundle.js",
			HTML:   "index.html",
			Title:  "Document",
		},
		Transform: Transform{
			Target:      "es2017",
			Minify:      true,
			CacheSize:   1024,
			BrotliLevel: 11,
		},
		Dev: Dev{
			Address:    "localhost:5173",
			Debounce:   100 * time.Millisecond,
			LiveReload: true,
		},
	}
}

// Validate reports the first inconsistency as a configuration error.
func (m *Model) Validate() error {
	if m.Entry == "" {
		return builderr.Configf("entry is required")
	}
	if len(m.Roots) == 0 {
		return builderr.Configf("at least one root is required")
	}
	if len(m.Extensions) == 0 {
		return builderr.Configf("at least one extension is required")
	}
	if m.Workers < 0 {
		return builderr.Configf("workers must not be negative, got %d", m.Workers)
	}
	if m.Output.Bundle == "" {
		return builderr.Configf("output bundle name is required")
	}
	if filepath.Base(m.Output.Bundle) != m.Output.Bundle {
		return builderr.Configf("output bundle %q must be a file name, not a path", m.Output.Bundle)
	}
	if m.Transform.BrotliLevel < 0 || m.Transform.BrotliLevel > 11 {
		return builderr.Configf("brotli level must be between 0 and 11, got %d", m.Transform.BrotliLevel)
	}
	if m.Dev.Debounce < 0 {
		return builderr.Configf("dev debounce must not be negative")
	}
	if p := m.Publish; p != nil && (p.Endpoint == "" || p.Bucket == "") {
		return builderr.Configf("publish needs both endpoint and bucket")
	}
	return nil
}

// String summarizes the model for debug logs. Secrets are omitted.
func (m *Model) String() string {
	return fmt.Sprintf("entry=%s roots=%v extensions=%v workers=%d out=%s/%s", m.Entry, m.Roots, m.Extensions, m.Workers, m.Output.Dir, m.Output.Bundle)
}

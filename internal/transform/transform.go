// Package transform downlevels module sources and rewrites their dependency
// references to numeric module ids.
package transform

import "context"

// Transformer converts one module's raw source into CommonJS the runtime can
// execute. Implementations must be safe for concurrent use.
type Transformer interface {
	Transform(ctx context.Context, path string, src []byte) (string, error)
}

// Fingerprinter is implemented by transformers whose output depends on
// options. The fingerprint is folded into cache keys.
type Fingerprinter interface {
	Fingerprint() string
}

// Cache stores transformer output by key.
type Cache interface {
	Get(key string) (string, bool)
	Add(key, out string)
}

// Module is a transformed module ready for assembly.
type Module struct {
	ID     int
	Path   string
	Source string
}

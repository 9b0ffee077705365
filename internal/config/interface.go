package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the configuration at path, applies defaults, and returns the
	// model with every relative path made absolute against the file's
	// directory.
	Load(ctx context.Context, path string) (*Model, error)
}

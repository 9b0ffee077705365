// Package app wires the bundler stages into the two lifecycles the CLI
// exposes: a one-shot production build and the watching development server.
// It owns the state shared across builds (worker pool, transform cache,
// codecs) so that successive rebuilds reuse it.
package app

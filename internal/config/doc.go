// Package config defines the format-agnostic configuration model of the
// bundler and the Loader interface that fills it from a file.
//
// The Model is the single source of truth for every build stage. Concrete
// loaders, such as the HCL one, live in separate packages.
package config

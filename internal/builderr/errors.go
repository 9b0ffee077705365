// Package builderr defines the failure taxonomy shared by every build stage.
//
// Each failure carries a Kind sentinel so callers can classify it with
// errors.Is regardless of how many times it was wrapped on the way up.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration covers a missing entry file or an output extension the
	// discovery service does not scan. Always raised before anything is written.
	ErrConfiguration = errors.New("configuration error")
	// ErrResolution means a declared dependency name has no matching file.
	ErrResolution = errors.New("resolution error")
	// ErrTransform means a module failed its syntax transform.
	ErrTransform = errors.New("transform error")
	// ErrIO means an artifact could not be read or written.
	ErrIO = errors.New("i/o error")
)

// Error is a classified build failure.
type Error struct {
	Kind error
	// Path is the file the failure is about: the containing module for
	// resolution errors, the module for transform errors, the target for I/O.
	Path string
	// Name is the dependency name for resolution errors.
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if e.Name != "" || e.Kind == ErrResolution {
		fmt.Fprintf(&b, ": cannot resolve %q", e.Name)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is matches the Kind sentinel.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

// EntryNotFound reports an entry path absent from the discovered file set.
func EntryNotFound(path string) error {
	return &Error{Kind: ErrConfiguration, Path: path, Err: errors.New("entry point does not exist in the discovered file set")}
}

// ExtensionMismatch reports an output extension the discovery service does not scan.
func ExtensionMismatch(ext string, allowed []string) error {
	return &Error{Kind: ErrConfiguration, Err: fmt.Errorf("output extension %q is not one of the scanned extensions [%s]", ext, strings.Join(allowed, ", "))}
}

// Configf builds a free-form configuration error.
func Configf(format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Err: fmt.Errorf(format, args...)}
}

// Unresolved reports a (containing file, dependency name) pair with no match.
func Unresolved(containing, name string, err error) error {
	return &Error{Kind: ErrResolution, Path: containing, Name: name, Err: err}
}

// Transform reports a module whose syntax transform failed.
func Transform(path string, err error) error {
	return &Error{Kind: ErrTransform, Path: path, Err: err}
}

// Read reports a source file that could not be read.
func Read(path string, err error) error {
	return &Error{Kind: ErrIO, Path: path, Err: err}
}

// Write reports an artifact that could not be written.
func Write(path string, err error) error {
	return &Error{Kind: ErrIO, Path: path, Err: err}
}

package transform

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/ctxlog"
)

// DefaultTarget is the language level modules are lowered to.
const DefaultTarget = "es2017"

var targets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name such as "es2017" to its esbuild value.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		name = DefaultTarget
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return 0, builderr.Configf("unknown transform target %q", name)
	}
	return t, nil
}

// Esbuild lowers syntax to the configured target and converts ES module
// syntax to CommonJS.
type Esbuild struct {
	name   string
	target api.Target
}

// NewEsbuild creates an esbuild transformer for the named target.
func NewEsbuild(target string) (*Esbuild, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	if target == "" {
		target = DefaultTarget
	}
	return &Esbuild{name: strings.ToLower(target), target: t}, nil
}

// Fingerprint identifies the transform options.
func (e *Esbuild) Fingerprint() string { return "esbuild/cjs/" + e.name }

// Transform runs esbuild on src. path is used for the loader and in messages.
func (e *Esbuild) Transform(ctx context.Context, path string, src []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res := api.Transform(string(src), api.TransformOptions{
		Loader:     loaderFor(path),
		Format:     api.FormatCommonJS,
		Target:     e.target,
		Sourcefile: path,
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		msgs := api.FormatMessages(res.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return "", errors.New(strings.TrimSpace(strings.Join(msgs, "\n")))
	}
	if len(res.Warnings) > 0 {
		logger := ctxlog.FromContext(ctx)
		for _, w := range res.Warnings {
			logger.Warn("Transform warning.", "text", w.Text)
		}
	}
	return string(res.Code), nil
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJS
	}
}

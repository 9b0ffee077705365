package optimize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// MinifyOptions name the files the minified output will be written as.
type MinifyOptions struct {
	// Filename is the hashed bundle name.
	Filename string
	// MapURL is the source map name referenced from the bundle.
	MapURL string
}

// Minified is the output of a Minifier.
type Minified struct {
	Code string
	Map  string
}

// Minifier shrinks a bundle and produces its source map. The returned code
// must end with a sourceMappingURL comment pointing at opts.MapURL.
type Minifier interface {
	Minify(code string, opts MinifyOptions) (Minified, error)
}

// Esbuild minifies with esbuild's whitespace, identifier and syntax passes.
type Esbuild struct{}

// Minify implements Minifier.
func (Esbuild) Minify(code string, opts MinifyOptions) (Minified, error) {
	res := api.Transform(code, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Sourcemap:         api.SourceMapExternal,
		Sourcefile:        sourceName(opts.Filename),
		LogLevel:          api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		msgs := api.FormatMessages(res.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return Minified{}, fmt.Errorf("minify: %s", strings.TrimSpace(strings.Join(msgs, "\n")))
	}
	sourceMap, err := withFile(res.Map, opts.Filename)
	if err != nil {
		return Minified{}, err
	}
	return Minified{
		Code: withMapURL(string(res.Code), opts.MapURL),
		Map:  sourceMap,
	}, nil
}

// Passthrough leaves the bundle as is and emits a map with no mappings.
type Passthrough struct{}

// Minify implements Minifier.
func (Passthrough) Minify(code string, opts MinifyOptions) (Minified, error) {
	m := sourceMapV3{
		Version:  3,
		File:     opts.Filename,
		Sources:  []string{},
		Names:    []string{},
		Mappings: "",
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return Minified{}, err
	}
	return Minified{Code: withMapURL(code, opts.MapURL), Map: string(raw)}, nil
}

type sourceMapV3 struct {
	Version  int      `json:"version"`
	File     string   `json:"file"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// sourceName is the name the unminified bundle appears under in the map.
func sourceName(filename string) string {
	return strings.TrimSuffix(filename, ".js") + ".src.js"
}

func withMapURL(code, mapURL string) string {
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + "//# sourceMappingURL=" + mapURL + "\n"
}

// withFile sets the map's "file" field, keeping every other field.
func withFile(raw []byte, file string) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("minify: no source map produced")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("minify: decode source map: %w", err)
	}
	name, err := json.Marshal(file)
	if err != nil {
		return "", err
	}
	fields["file"] = name
	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("minify: encode source map: %w", err)
	}
	return string(out), nil
}

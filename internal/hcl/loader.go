package hcl

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/config"
	"github.com/vk/merlin/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// Environ supplies env.* variables; os.Environ when nil.
	Environ func() []string
}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{Environ: processEnv}
}

// Load parses and decodes the file at path into a config.Model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, builderr.Configf("resolve config path %s: %v", path, err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, builderr.Configf("read config %s: %v", abs, err)
	}
	return l.Parse(ctx, abs, src)
}

// Parse decodes src as if it were read from path.
func (l *Loader) Parse(ctx context.Context, path string, src []byte) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	baseDir := filepath.Dir(path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, builderr.Configf("failed to parse HCL file %s: %w", path, diags)
	}

	environ := processEnv
	if l.Environ != nil {
		environ = l.Environ
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(environ(), cwd), &root)
	if diags.HasErrors() {
		return nil, builderr.Configf("failed to decode HCL file %s: %w", path, diags)
	}

	m, err := translate(&root, baseDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL configuration loaded.", "path", path, "model", m.String())
	return m, nil
}

// translate overlays the decoded file on the defaults and makes every
// relative path absolute against baseDir.
func translate(r *fileRoot, baseDir string) (*config.Model, error) {
	m := config.Default(baseDir)
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(baseDir, p)
	}

	if len(r.Roots) > 0 {
		m.Roots = m.Roots[:0]
		for _, root := range r.Roots {
			m.Roots = append(m.Roots, abs(root))
		}
	}
	if len(r.Extensions) > 0 {
		m.Extensions = r.Extensions
	}
	if r.Entry != nil {
		m.Entry = abs(*r.Entry)
	}
	if r.Workers != nil {
		m.Workers = *r.Workers
	}
	m.IgnoreDirs = r.IgnoreDirs

	if o := r.Output; o != nil {
		setString(&m.Output.Dir, o.Dir)
		setString(&m.Output.Bundle, o.Bundle)
		setString(&m.Output.HTML, o.HTML)
		setString(&m.Output.Title, o.Title)
		m.Output.Dir = abs(m.Output.Dir)
	}
	if t := r.Transform; t != nil {
		setString(&m.Transform.Target, t.Target)
		setBool(&m.Transform.Minify, t.Minify)
		setInt(&m.Transform.CacheSize, t.CacheSize)
		setInt(&m.Transform.BrotliLevel, t.BrotliLevel)
	}
	if d := r.Dev; d != nil {
		setString(&m.Dev.Address, d.Address)
		setBool(&m.Dev.LiveReload, d.LiveReload)
		if d.Debounce != nil {
			dur, err := time.ParseDuration(*d.Debounce)
			if err != nil {
				return nil, builderr.Configf("dev.debounce: %v", err)
			}
			m.Dev.Debounce = dur
		}
	}
	if p := r.Publish; p != nil {
		m.Publish = &config.Publish{Endpoint: p.Endpoint, Bucket: p.Bucket}
		setString(&m.Publish.Prefix, p.Prefix)
		setString(&m.Publish.AccessKey, p.AccessKey)
		setString(&m.Publish.SecretKey, p.SecretKey)
		setString(&m.Publish.Region, p.Region)
		setBool(&m.Publish.UseSSL, p.UseSSL)
	}
	return m, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

var _ config.Loader = (*Loader)(nil)

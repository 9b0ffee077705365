package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/merlin/internal/builderr"
)

func TestDefault(t *testing.T) {
	m := Default("/work")
	assert.Equal(t, []string{"/work"}, m.Roots)
	assert.Equal(t, []string{"js"}, m.Extensions)
	assert.Equal(t, runtime.NumCPU(), m.Workers)
	assert.Equal(t, Output{Dir: "/work", Bundle: "bundle.js", HTML: "index.html", Title: "Document"}, m.Output)
	assert.Equal(t, "es2017", m.Transform.Target)
	assert.True(t, m.Transform.Minify)
	assert.Equal(t, 1024, m.Transform.CacheSize)
	assert.Equal(t, "localhost:5173", m.Dev.Address)
	assert.Equal(t, 100*time.Millisecond, m.Dev.Debounce)
	assert.Nil(t, m.Publish)
}

func TestValidate(t *testing.T) {
	valid := func() *Model {
		m := Default("/work")
		m.Entry = "/work/index.js"
		return m
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Model){
		"entry is required":        func(m *Model) { m.Entry = "" },
		"at least one root":        func(m *Model) { m.Roots = nil },
		"at least one extension":   func(m *Model) { m.Extensions = nil },
		"workers must not be":      func(m *Model) { m.Workers = -1 },
		"bundle name is required":  func(m *Model) { m.Output.Bundle = "" },
		"must be a file name":      func(m *Model) { m.Output.Bundle = "dist/app.js" },
		"brotli level":             func(m *Model) { m.Transform.BrotliLevel = 12 },
		"debounce must not be":     func(m *Model) { m.Dev.Debounce = -time.Second },
		"both endpoint and bucket": func(m *Model) { m.Publish = &Publish{Endpoint: "s3:9000"} },
	}
	for want, mutate := range tests {
		t.Run(want, func(t *testing.T) {
			m := valid()
			mutate(m)
			err := m.Validate()
			require.ErrorIs(t, err, builderr.ErrConfiguration)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestStringOmitsSecrets(t *testing.T) {
	m := Default("/work")
	m.Publish = &Publish{Endpoint: "s3", Bucket: "b", SecretKey: "hunter2"}
	assert.NotContains(t, m.String(), "hunter2")
}

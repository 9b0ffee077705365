package hcl

// fileRoot is the decoding target for a whole configuration file. Optional
// attributes are pointers so that unset values keep their defaults.
type fileRoot struct {
	Roots      []string        `hcl:"roots,optional"`
	Extensions []string        `hcl:"extensions,optional"`
	Entry      *string         `hcl:"entry,optional"`
	Workers    *int            `hcl:"workers,optional"`
	IgnoreDirs []string        `hcl:"ignore_dirs,optional"`
	Output     *outputBlock    `hcl:"output,block"`
	Transform  *transformBlock `hcl:"transform,block"`
	Dev        *devBlock       `hcl:"dev,block"`
	Publish    *publishBlock   `hcl:"publish,block"`
}

type outputBlock struct {
	Dir    *string `hcl:"dir,optional"`
	Bundle *string `hcl:"bundle,optional"`
	HTML   *string `hcl:"html,optional"`
	Title  *string `hcl:"title,optional"`
}

type transformBlock struct {
	Target      *string `hcl:"target,optional"`
	Minify      *bool   `hcl:"minify,optional"`
	CacheSize   *int    `hcl:"cache_size,optional"`
	BrotliLevel *int    `hcl:"brotli_level,optional"`
}

type devBlock struct {
	Address    *string `hcl:"address,optional"`
	Debounce   *string `hcl:"debounce,optional"`
	LiveReload *bool   `hcl:"live_reload,optional"`
}

type publishBlock struct {
	Endpoint  string  `hcl:"endpoint"`
	Bucket    string  `hcl:"bucket"`
	Prefix    *string `hcl:"prefix,optional"`
	AccessKey *string `hcl:"access_key,optional"`
	SecretKey *string `hcl:"secret_key,optional"`
	Region    *string `hcl:"region,optional"`
	UseSSL    *bool   `hcl:"use_ssl,optional"`
}

// Package optimize turns an assembled bundle into the content-addressed
// artifact set written to the output directory:
//
//	{base}.{hash}.{ext}         minified bundle
//	{base}.{hash}.{ext}.map     source map
//	{base}.{hash}.{ext}.br      brotli companion
//	{base}.{hash}.{ext}.map.br
//	index.html                  shell loading the hashed bundle
//	index.html.br
//
// The hash is the sha256 of the assembled, pre-minification bundle, so equal
// bundle sources always produce equal file names whatever the minifier does.
package optimize

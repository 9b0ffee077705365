// Package publish uploads a finished artifact set to S3-compatible storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/ctxlog"
	"github.com/vk/merlin/internal/optimize"
)

// Object is one upload.
type Object struct {
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// Store puts objects into a bucket.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType, contentEncoding string) error
}

// Publisher uploads artifacts under a key prefix.
type Publisher struct {
	store  Store
	bucket string
	prefix string
}

// New connects to the configured endpoint.
func New(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, builderr.Configf("publish: %v", err)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("publish: create client: %w", err)
	}
	return NewWithStore(&MinioStore{client: client}, cfg.Bucket, cfg.Prefix), nil
}

// NewWithStore creates a Publisher over an existing store.
func NewWithStore(store Store, bucket, prefix string) *Publisher {
	return &Publisher{store: store, bucket: bucket, prefix: prefix}
}

// Objects lists the uploads for a, companions included. Companions keep the
// content type of the file they compress and carry a Content-Encoding.
func (p *Publisher) Objects(a *optimize.Artifact) []Object {
	var out []Object
	for _, f := range a.Files() {
		ct := optimize.ContentType(f.Name)
		out = append(out,
			Object{Key: path.Join(p.prefix, f.Name), Body: f.Content, ContentType: ct},
			Object{Key: path.Join(p.prefix, f.Name+optimize.CompressedSuffix), Body: f.Compressed, ContentType: ct, ContentEncoding: optimize.Encoding},
		)
	}
	return out
}

// Publish uploads every object of a. The HTML shell goes last so it never
// references a bundle that is not yet in the bucket.
func (p *Publisher) Publish(ctx context.Context, a *optimize.Artifact) error {
	logger := ctxlog.FromContext(ctx)
	for _, obj := range p.Objects(a) {
		err := p.store.Put(ctx, p.bucket, obj.Key, bytes.NewReader(obj.Body), int64(len(obj.Body)), obj.ContentType, obj.ContentEncoding)
		if err != nil {
			return builderr.Write(p.bucket+"/"+obj.Key, err)
		}
		logger.Debug("Object uploaded.", "bucket", p.bucket, "key", obj.Key, "bytes", len(obj.Body))
	}
	logger.Info("Artifact published.", "bucket", p.bucket, "prefix", p.prefix, "hash", a.Hash)
	return nil
}

// MinioStore is a Store backed by a minio client.
type MinioStore struct {
	client *minio.Client
}

// Put implements Store.
func (s *MinioStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType, contentEncoding string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio store not initialized")
	}
	opts := minio.PutObjectOptions{ContentType: contentType, ContentEncoding: contentEncoding}
	_, err := s.client.PutObject(ctx, bucket, key, body, size, opts)
	return err
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

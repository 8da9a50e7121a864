package storage

import (
	"context"
	"io"
	"time"
)

// Package storage holds the blob storage abstraction backing document
// attachments. Implementations stream to an S3-compatible object store;
// local disk is never used.

// PutObjectOptions carries optional upload parameters. Size must be the
// exact byte count when known, -1 otherwise (the backend then buffers or
// chunks as it supports).
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
}

// Storage is the blob store consumed by the document lifecycle service.
// Put returns a stable key referenced by file attachment records. Delete
// is used for create rollback and file removal; those callers treat its
// failures as best-effort. PresignGet produces a time-limited download
// URL so the API never proxies file bytes itself.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

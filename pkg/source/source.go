// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package source acquires the bytes of a document to convert: an inline
// base64 payload, a local path or an s3://bucket/key object.
package source

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/leseb/filereader/pkg/provider"
)

var (
	// ErrObjectNotFound is returned when the referenced object does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrAccessDenied is returned when the caller may not read the object.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidURI is returned for malformed source URIs.
	ErrInvalidURI = errors.New("invalid source uri")
	// ErrInvalidPayload is returned when inline content is not valid base64.
	ErrInvalidPayload = errors.New("invalid base64 content")
	// ErrEmptyPayload is returned when inline content decodes to zero bytes.
	ErrEmptyPayload = errors.New("decoded file content is empty")
)

// Object is a fetched document.
type Object struct {
	Name        string // base name, used for the extension
	Body        []byte
	ContentType string
	Size        int64
}

// Fetcher retrieves objects by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*Object, error)
	Close(ctx context.Context) error
}

// Factory creates a Fetcher from backend parameters.
type Factory func(ctx context.Context, params map[string]string) (Fetcher, error)

// Fetchers is the registry of source backends.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/filereader/pkg/source/file"
//	import _ "github.com/leseb/filereader/pkg/source/memory"
//	import _ "github.com/leseb/filereader/pkg/source/s3"
var Fetchers = provider.NewRegistry[Factory]("source")

// Open creates a Fetcher for the named backend.
func Open(ctx context.Context, backend string, params map[string]string) (Fetcher, error) {
	factory, err := Fetchers.Get(backend)
	if err != nil {
		return nil, err
	}
	return factory(ctx, params)
}

// Scheme returns the backend name a URI resolves to: "s3" for s3://,
// "memory" for mem:// and "file" for everything else.
func Scheme(uri string) string {
	lower := strings.ToLower(strings.TrimSpace(uri))
	switch {
	case strings.HasPrefix(lower, "s3://"):
		return "s3"
	case strings.HasPrefix(lower, "mem://"):
		return "memory"
	default:
		return "file"
	}
}

// IsS3URI reports whether uri uses the s3:// scheme.
func IsS3URI(uri string) bool {
	return Scheme(uri) == "s3"
}

// S3URI is a parsed s3://bucket/key reference.
type S3URI struct {
	Bucket string
	Key    string
}

// ParseS3URI splits an s3:// URI into bucket and key. Both are required.
func ParseS3URI(uri string) (S3URI, error) {
	if !IsS3URI(uri) {
		return S3URI{}, fmt.Errorf("%w: expected s3://bucket/key, got %q", ErrInvalidURI, uri)
	}
	rest := strings.TrimSpace(uri)[len("s3://"):]
	bucket, key, _ := strings.Cut(rest, "/")
	key = strings.TrimLeft(key, "/")
	if bucket == "" {
		return S3URI{}, fmt.Errorf("%w: no bucket in %q", ErrInvalidURI, uri)
	}
	if key == "" {
		return S3URI{}, fmt.Errorf("%w: no key in %q", ErrInvalidURI, uri)
	}
	return S3URI{Bucket: bucket, Key: key}, nil
}

func (u S3URI) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// Name returns the last element of the key.
func (u S3URI) Name() string {
	return path.Base(u.Key)
}

// DecodeBase64 decodes standard base64, padded or not. Surrounding
// whitespace and line breaks are ignored.
func DecodeBase64(payload string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if clean == "" {
		return nil, ErrEmptyPayload
	}

	enc := base64.StdEncoding
	if !strings.HasSuffix(clean, "=") && len(clean)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	data, err := enc.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return data, nil
}

// NewObject builds an Object for name and body, guessing the content type
// from the extension and then from the leading bytes.
func NewObject(name string, body []byte) *Object {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return &Object{
		Name:        filepath.Base(name),
		Body:        body,
		ContentType: ct,
		Size:        int64(len(body)),
	}
}

// Materialize writes obj to a new file in dir named filereader_<id>_<name>,
// so the original extension survives. The returned cleanup removes the file
// and is safe to call more than once.
func Materialize(obj *Object, dir string) (string, func(), error) {
	if obj == nil {
		return "", func() {}, errors.New("materialize: nil object")
	}
	if dir == "" {
		dir = os.TempDir()
	}

	name := safeName(obj.Name)
	p := filepath.Join(dir, "filereader_"+uuid.NewString()+"_"+name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(p) }

	if _, err := f.Write(obj.Body); err != nil {
		f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return p, cleanup, nil
}

// safeName reduces name to a single path element.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}

// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/leseb/filereader/pkg/source"
)

func init() {
	source.Fetchers.Register("file", func(_ context.Context, params map[string]string) (source.Fetcher, error) {
		return New(params["root"])
	})
}

// compile-time check
var _ source.Fetcher = (*Fetcher)(nil)

// Fetcher reads objects from the local file system. When Root is set,
// relative paths resolve under it and paths escaping it are refused.
type Fetcher struct {
	root string
}

// New creates a file Fetcher. An empty root allows any path.
func New(root string) (*Fetcher, error) {
	if root == "" {
		return &Fetcher{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("file source: resolve root: %w", err)
	}
	return &Fetcher{root: abs}, nil
}

// Fetch reads the file at uri, with or without a file:// prefix.
func (f *Fetcher) Fetch(_ context.Context, uri string) (*source.Object, error) {
	p, err := f.resolve(uri)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, mapErr(uri, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", uri, source.ErrObjectNotFound)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, mapErr(uri, err)
	}
	return source.NewObject(p, data), nil
}

// Close is a no-op for the file source.
func (f *Fetcher) Close(_ context.Context) error {
	return nil
}

func (f *Fetcher) resolve(uri string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(uri), "file://")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", source.ErrInvalidURI)
	}
	if f.root == "" {
		return filepath.Clean(p), nil
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(f.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(f.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s: %w", uri, f.root, source.ErrAccessDenied)
	}
	return p, nil
}

func mapErr(uri string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", uri, source.ErrObjectNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", uri, source.ErrAccessDenied)
	}
	return fmt.Errorf("read %s: %w", uri, err)
}

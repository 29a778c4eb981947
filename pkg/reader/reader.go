// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package reader validates a file path, resolves the handler registered for
// its extension and returns the rendered document.
package reader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/leseb/filereader/pkg/core/options"
	"github.com/leseb/filereader/pkg/extractor"
	"github.com/leseb/filereader/pkg/observability/logging"
	"github.com/leseb/filereader/pkg/provider"
)

var (
	// ErrNotFound is returned when the path does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrPermissionDenied is returned when the file cannot be opened for reading.
	ErrPermissionDenied = errors.New("file is not readable")
	// ErrEmptyFile is returned for zero-byte files.
	ErrEmptyFile = errors.New("file is empty")
	// ErrNoExtension is returned when the file name has no extension.
	ErrNoExtension = errors.New("file has no extension")
	// ErrUnsupportedExtension is returned when no handler is registered for
	// the extension.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)

// ProcessingError wraps an error returned by a format handler.
type ProcessingError struct {
	Extension string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("failed to process %s file: %v", strings.ToUpper(e.Extension), e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Is lets callers match a handler's file system error against the
// dispatcher's own sentinels.
func (e *ProcessingError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return errors.Is(e.Err, fs.ErrNotExist)
	case ErrPermissionDenied:
		return errors.Is(e.Err, fs.ErrPermission)
	}
	return false
}

// ErrorKind classifies errors returned by Read.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindEmptyFile
	KindUnsupportedExtension
	KindProcessingFailed
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindEmptyFile:
		return "empty_file"
	case KindUnsupportedExtension:
		return "unsupported_extension"
	case KindProcessingFailed:
		return "processing_failed"
	default:
		return "unknown"
	}
}

// Kind returns the class of err. A missing extension is reported as an
// unsupported one.
func Kind(err error) ErrorKind {
	var pe *ProcessingError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &pe):
		return KindProcessingFailed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrEmptyFile):
		return KindEmptyFile
	case errors.Is(err, ErrNoExtension), errors.Is(err, ErrUnsupportedExtension):
		return KindUnsupportedExtension
	default:
		return KindUnknown
	}
}

// FileReader dispatches files to the handler registered for their extension.
type FileReader struct {
	opts     options.Options
	registry *extractor.Registry
	logger   *slog.Logger
}

// New creates a FileReader. A nil registry is replaced by the built-in one
// and a nil logger discards output.
func New(opts options.Options, reg *extractor.Registry, logger *slog.Logger) *FileReader {
	if reg == nil {
		reg = extractor.NewRegistry(opts)
	}
	logger = logging.OrDiscard(logger)
	logger.Debug("file reader initialized",
		"output_format", opts.OutputFormat,
		"extensions", reg.Keys(),
	)
	return &FileReader{opts: opts, registry: reg, logger: logger}
}

// Options returns the options handlers are created with.
func (r *FileReader) Options() options.Options {
	return r.opts
}

// Read validates path and renders it with the matching handler.
func (r *FileReader) Read(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	f.Close()

	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := extension(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s", ErrNoExtension, path)
	}

	factory, ok := r.registry.Lookup(ext)
	if !ok {
		return "", fmt.Errorf("%w %q (supported: %s)",
			ErrUnsupportedExtension, ext, strings.Join(r.SupportedExtensions(), ", "))
	}

	r.logger.Info("processing file",
		"extension", strings.ToUpper(ext),
		"file", filepath.Base(path),
	)

	out, err := factory(r.opts, r.logger).Read(path)
	if err != nil {
		r.logger.Error("failed to process file",
			"extension", strings.ToUpper(ext),
			"file", filepath.Base(path),
			"error", err,
		)
		return "", &ProcessingError{Extension: ext, Err: err}
	}

	r.logger.Info("file processed", "characters", utf8.RuneCountInString(out))
	return out, nil
}

// SupportedExtensions returns the sorted registered extensions.
func (r *FileReader) SupportedExtensions() []string {
	return r.registry.Keys()
}

// IsSupportedFile reports whether a handler is registered for the extension
// of path. The file itself is not inspected.
func (r *FileReader) IsSupportedFile(path string) bool {
	ext := extension(path)
	return ext != "" && r.registry.Has(ext)
}

// extension returns the normalized extension of path. Leading dots of the
// base name do not start an extension, so ".env" has none.
func extension(path string) string {
	base := strings.TrimLeft(filepath.Base(path), ".")
	return provider.NormalizeKey(filepath.Ext(base))
}

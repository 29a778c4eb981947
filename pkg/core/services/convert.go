// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/leseb/filereader/pkg/chunker"
	"github.com/leseb/filereader/pkg/core/options"
	"github.com/leseb/filereader/pkg/extractor"
	"github.com/leseb/filereader/pkg/observability/logging"
	"github.com/leseb/filereader/pkg/reader"
	"github.com/leseb/filereader/pkg/source"
)

// ProcessorVersion is reported in every successful conversion.
const ProcessorVersion = "FileReader v2.0 - AI Optimized"

// Input methods reported in ConvertResponse.File.
const (
	InputBase64 = "base64"
	InputS3     = "s3"
	InputUpload = "upload"
)

// Error codes carried by *Error.
const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodeAccessDenied = "access_denied"
	CodeInternal     = "internal_error"
)

// Error is a conversion failure classified for the caller.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the code of err, or CodeInternal for unclassified errors.
func ErrorCode(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

func validation(err error, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...), Err: err}
}

// ConvertRequest describes one document to convert. Unset option fields take
// the service defaults.
type ConvertRequest struct {
	FileName           string `json:"file_name"`
	FileContent        string `json:"file_content,omitempty"`
	S3Path             string `json:"s3_path,omitempty"`
	OutputFormat       string `json:"output_format,omitempty"`
	AIOptimized        *bool  `json:"ai_optimized,omitempty"`
	IncludeMetadata    *bool  `json:"include_metadata,omitempty"`
	ExtractKeySections *bool  `json:"extract_key_sections,omitempty"`
	MaxChunkSize       *int   `json:"max_chunk_size,omitempty"`
	ProcessingImages   *bool  `json:"processing_images,omitempty"`
	Region             string `json:"region,omitempty"`

	// Content carries raw bytes from a multipart upload. It takes the place
	// of FileContent and is never part of the JSON body.
	Content []byte `json:"-"`
}

// FileInfo echoes what was converted.
type FileInfo struct {
	Name         string `json:"name"`
	OutputFormat string `json:"output_format"`
	AIOptimized  bool   `json:"ai_optimized"`
	InputMethod  string `json:"input_method"`
	S3Path       string `json:"s3_path,omitempty"`
}

// Stats describes a conversion run.
type Stats struct {
	ProcessedAt       time.Time `json:"processed_at"`
	ProcessingSeconds float64   `json:"processing_seconds"`
	RequestID         string    `json:"request_id"`
	FileSizeBytes     int64     `json:"file_size_bytes"`
	OutputChars       int       `json:"output_chars"`
	ProcessorVersion  string    `json:"processor_version"`
}

// ConvertResponse is the result of a successful conversion.
type ConvertResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	File    FileInfo `json:"file"`
	Result  string   `json:"result"`
	Chunks  []string `json:"chunks"`
	Stats   Stats    `json:"stats"`
}

// SourceOpener returns the fetcher used for s3:// inputs in region.
type SourceOpener func(ctx context.Context, region string) (source.Fetcher, error)

// ConverterConfig configures a Converter.
type ConverterConfig struct {
	Defaults options.Options
	// Registry is shared by every request. Nil builds the built-in one.
	Registry *extractor.Registry
	TempDir  string
	// S3Region and S3Endpoint configure the default s3 source.
	S3Region   string
	S3Endpoint string
	// OpenSource overrides how s3 fetchers are created.
	OpenSource SourceOpener
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Converter acquires a document, renders it and builds the response envelope.
type Converter struct {
	// defaults are the configured options before the markdown_ai override.
	defaults options.Options
	registry *extractor.Registry
	tempDir  string
	open     SourceOpener
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	fetchers map[string]source.Fetcher
}

// NewConverter creates a Converter.
func NewConverter(cfg ConverterConfig) *Converter {
	c := &Converter{
		registry: cfg.Registry,
		tempDir:  cfg.TempDir,
		open:     cfg.OpenSource,
		logger:   logging.OrDiscard(cfg.Logger),
		now:      cfg.Clock,
		fetchers: make(map[string]source.Fetcher),
	}
	if d, err := options.WithDefaults(cfg.Defaults); err == nil {
		c.defaults = d
	} else {
		c.defaults, _ = options.WithDefaults(options.Options{})
	}
	if c.registry == nil {
		c.registry = extractor.NewRegistry(options.MustNew(c.defaults))
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.open == nil {
		region, endpoint := cfg.S3Region, cfg.S3Endpoint
		c.open = func(ctx context.Context, r string) (source.Fetcher, error) {
			if r == "" {
				r = region
			}
			return source.Open(ctx, "s3", map[string]string{"region": r, "endpoint": endpoint})
		}
	}
	return c
}

// SupportedExtensions returns the sorted registered extensions.
func (c *Converter) SupportedExtensions() []string {
	return c.registry.Keys()
}

// Convert validates req, acquires the document and renders it.
func (c *Converter) Convert(ctx context.Context, req *ConvertRequest) (*ConvertResponse, error) {
	start := c.now()

	opts, err := c.validate(req)
	if err != nil {
		c.logger.Warn("invalid convert request", "error", err)
		return nil, err
	}

	obj, method, err := c.acquire(ctx, req)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := source.Materialize(obj, c.tempDir)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to stage file", Err: err}
	}
	defer func() {
		cleanup()
		c.logger.Debug("temporary file removed", "path", path)
	}()

	c.logger.Info("converting file",
		"file", req.FileName,
		"input_method", method,
		"output_format", opts.OutputFormat,
		"ai_optimized", opts.AIOptimized)

	result, err := reader.New(opts, c.registry, c.logger).Read(path)
	if err != nil {
		switch reader.Kind(err) {
		case reader.KindEmptyFile, reader.KindUnsupportedExtension:
			return nil, validation(err, "%v", err)
		}
		return nil, &Error{Code: CodeInternal, Message: "an internal error occurred while processing the file", Err: err}
	}

	end := c.now()
	elapsed := end.Sub(start).Seconds()
	c.logger.Info("file converted", "file", req.FileName, "seconds", fmt.Sprintf("%.2f", elapsed))

	resp := &ConvertResponse{
		Success: true,
		Message: "File processed successfully",
		File: FileInfo{
			Name:         req.FileName,
			OutputFormat: string(opts.OutputFormat),
			AIOptimized:  opts.AIOptimized,
			InputMethod:  method,
		},
		Result: result,
		Chunks: chunker.Split(result, opts.MaxChunkSize),
		Stats: Stats{
			ProcessedAt:       end,
			ProcessingSeconds: math.Round(elapsed*100) / 100,
			RequestID:         uuid.NewString(),
			FileSizeBytes:     obj.Size,
			OutputChars:       utf8.RuneCountInString(result),
			ProcessorVersion:  ProcessorVersion,
		},
	}
	if method == InputS3 {
		resp.File.S3Path = req.S3Path
	}
	if resp.Chunks == nil {
		resp.Chunks = []string{}
	}
	return resp, nil
}

// validate checks the request shape and resolves the effective options.
func (c *Converter) validate(req *ConvertRequest) (options.Options, error) {
	if req == nil || strings.TrimSpace(req.FileName) == "" {
		return options.Options{}, validation(nil, "missing required parameter: 'file_name'")
	}
	hasContent, hasS3 := req.FileContent != "" || req.Content != nil, req.S3Path != ""
	if !hasContent && !hasS3 {
		return options.Options{}, validation(nil, "provide either 'file_content' (base64) or 's3_path'")
	}
	if hasContent && hasS3 {
		return options.Options{}, validation(nil, "cannot provide both 'file_content' and 's3_path'; choose one input method")
	}

	o := c.defaults
	if req.OutputFormat != "" {
		f, err := options.ParseOutputFormat(req.OutputFormat)
		if err != nil {
			return options.Options{}, validation(err, "%v", err)
		}
		o.OutputFormat = f
	}
	setBool(&o.AIOptimized, req.AIOptimized)
	setBool(&o.IncludeMetadata, req.IncludeMetadata)
	setBool(&o.ExtractKeySections, req.ExtractKeySections)
	setBool(&o.ProcessingImages, req.ProcessingImages)
	if req.MaxChunkSize != nil {
		o.MaxChunkSize = *req.MaxChunkSize
	}
	opts, err := options.New(o)
	if err != nil {
		return options.Options{}, validation(err, "%v", err)
	}

	if !c.registry.Has(extensionOf(req.FileName)) {
		return options.Options{}, validation(reader.ErrUnsupportedExtension,
			"unsupported file extension for %q (supported: %s)",
			req.FileName, strings.Join(c.registry.Keys(), ", "))
	}
	return opts, nil
}

func (c *Converter) acquire(ctx context.Context, req *ConvertRequest) (*source.Object, string, error) {
	if req.Content != nil {
		if len(req.Content) == 0 {
			return nil, InputUpload, validation(source.ErrEmptyPayload, "%v", source.ErrEmptyPayload)
		}
		return source.NewObject(req.FileName, req.Content), InputUpload, nil
	}
	if req.FileContent != "" {
		data, err := source.DecodeBase64(req.FileContent)
		if err != nil {
			return nil, InputBase64, validation(err, "%v", err)
		}
		return source.NewObject(req.FileName, data), InputBase64, nil
	}

	if _, err := source.ParseS3URI(req.S3Path); err != nil {
		return nil, InputS3, validation(err, "%v", err)
	}
	f, err := c.s3Fetcher(ctx, req.Region)
	if err != nil {
		return nil, InputS3, &Error{Code: CodeInternal, Message: "failed to initialize s3 client", Err: err}
	}
	obj, err := f.Fetch(ctx, req.S3Path)
	switch {
	case errors.Is(err, source.ErrObjectNotFound):
		return nil, InputS3, &Error{Code: CodeNotFound, Message: "s3 object not found: " + req.S3Path, Err: err}
	case errors.Is(err, source.ErrAccessDenied):
		return nil, InputS3, &Error{Code: CodeAccessDenied, Message: "access denied to s3 object: " + req.S3Path, Err: err}
	case err != nil:
		return nil, InputS3, &Error{Code: CodeInternal, Message: "s3 download failed", Err: err}
	}
	c.logger.Info("s3 object downloaded", "s3_path", req.S3Path, "bytes", obj.Size)
	return obj, InputS3, nil
}

// s3Fetcher returns a cached fetcher per region.
func (c *Converter) s3Fetcher(ctx context.Context, region string) (source.Fetcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.fetchers[region]; ok {
		return f, nil
	}
	f, err := c.open(ctx, region)
	if err != nil {
		return nil, err
	}
	c.fetchers[region] = f
	return f, nil
}

// Close releases cached fetchers.
func (c *Converter) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for region, f := range c.fetchers {
		if err := f.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(c.fetchers, region)
	}
	return errors.Join(errs...)
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i+1:]
}

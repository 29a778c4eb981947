// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dustin/go-humanize"

	"github.com/leseb/filereader/pkg/observability/logging"
	"github.com/leseb/filereader/pkg/source"
)

func init() {
	source.Fetchers.Register("s3", func(ctx context.Context, params map[string]string) (source.Fetcher, error) {
		return New(ctx, Options{
			Region:   params["region"],
			Endpoint: params["endpoint"],
		})
	})
}

// compile-time check
var _ source.Fetcher = (*Fetcher)(nil)

// Options configures the S3 source.
type Options struct {
	Region   string // e.g. "us-east-1"
	Endpoint string // custom endpoint for MinIO compatibility
	Logger   *slog.Logger
}

// Fetcher downloads s3://bucket/key objects from S3 (or MinIO).
type Fetcher struct {
	client *s3.Client
	logger *slog.Logger
}

// New creates an S3 Fetcher using the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Fetcher, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	return &Fetcher{
		client: s3.NewFromConfig(cfg, s3Opts...),
		logger: logging.OrDiscard(opts.Logger),
	}, nil
}

// Client returns the underlying S3 client.
func (f *Fetcher) Client() *s3.Client {
	return f.client
}

// Fetch checks that the object exists, then downloads it.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*source.Object, error) {
	ref, err := source.ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, mapErr(ref, err)
	}
	f.logger.Info("s3 object found",
		"uri", ref.String(),
		"size", humanize.Bytes(uint64(aws.ToInt64(head.ContentLength))),
		"content_type", aws.ToString(head.ContentType))

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, mapErr(ref, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}

	obj := source.NewObject(ref.Name(), data)
	if ct := aws.ToString(out.ContentType); ct != "" {
		obj.ContentType = ct
	}
	return obj, nil
}

// Close is a no-op for the S3 source.
func (f *Fetcher) Close(_ context.Context) error {
	return nil
}

func mapErr(ref source.S3URI, err error) error {
	switch {
	case isNotFound(err):
		return fmt.Errorf("%s: %w", ref, source.ErrObjectNotFound)
	case isAccessDenied(err):
		return fmt.Errorf("%s: %w", ref, source.ErrAccessDenied)
	}
	return fmt.Errorf("s3 download %s: %w", ref, err)
}

// isNotFound checks whether the error indicates a missing bucket or object.
// HeadObject responses carry no body, so only the status code is reliable.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb) {
		return true
	}
	if statusCode(err) == http.StatusNotFound {
		return true
	}
	switch apiCode(err) {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

func isAccessDenied(err error) bool {
	if statusCode(err) == http.StatusForbidden {
		return true
	}
	switch apiCode(err) {
	case "AccessDenied", "Forbidden":
		return true
	}
	return false
}

func statusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

func apiCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

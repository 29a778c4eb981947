// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/leseb/filereader/pkg/core/options"
	"github.com/leseb/filereader/pkg/core/services"
	"github.com/leseb/filereader/pkg/source"
)

type convertFlags struct {
	format       string
	ai           bool
	metadata     bool
	keySections  bool
	images       bool
	maxChunkSize int
	output       string
	jsonOutput   bool
	region       string
	docxStrategy string
}

func newConvertCmd(c *cli) *cobra.Command {
	f := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert [path | s3://bucket/key]",
		Short: "Convert a document and print the result",
		Example: `  # Render a spreadsheet as markdown
  filereader convert report.xlsx

  # AI-oriented markdown from S3, saved to a file
  filereader convert s3://docs/contract.docx -f markdown_ai -o contract.md

  # Full response envelope with chunks
  filereader convert notes.txt --json --max-chunk-size 2000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, f, args[0])
		},
	}

	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format (markdown, markdown_ai, plain, structured_json)")
	cmd.Flags().BoolVar(&f.ai, "ai", false, "Enable AI optimizations")
	cmd.Flags().BoolVarP(&f.metadata, "metadata", "m", false, "Include a metadata header")
	cmd.Flags().BoolVar(&f.keySections, "key-sections", false, "Extract key sections")
	cmd.Flags().BoolVar(&f.images, "images", false, "Process embedded images")
	cmd.Flags().IntVar(&f.maxChunkSize, "max-chunk-size", 0, "Maximum characters per chunk")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the full response envelope as JSON")
	cmd.Flags().StringVar(&f.region, "region", "", "AWS region for s3:// inputs")
	cmd.Flags().StringVar(&f.docxStrategy, "docx-strategy", "", "Word handler (structural, converter)")
	return cmd
}

func (c *cli) runConvert(cmd *cobra.Command, f *convertFlags, uri string) error {
	ctx := cmd.Context()

	if f.docxStrategy != "" {
		st, err := options.ParseDocxStrategy(f.docxStrategy)
		if err != nil {
			return err
		}
		c.cfg.Reader.Options.DocxStrategy = st
	}

	params := map[string]string{}
	if source.IsS3URI(uri) {
		region := f.region
		if region == "" {
			region = c.cfg.S3.Region
		}
		params["region"] = region
		params["endpoint"] = c.cfg.S3.Endpoint
	}
	fetcher, err := source.Open(ctx, source.Scheme(uri), params)
	if err != nil {
		return err
	}
	defer fetcher.Close(ctx)

	obj, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return err
	}
	c.logger.Info("fetched document", "uri", uri, "size", humanize.Bytes(uint64(obj.Size)))

	req := &services.ConvertRequest{
		FileName:     filepath.Base(obj.Name),
		Content:      obj.Body,
		OutputFormat: f.format,
	}
	flags := cmd.Flags()
	if flags.Changed("ai") {
		req.AIOptimized = &f.ai
	}
	if flags.Changed("metadata") {
		req.IncludeMetadata = &f.metadata
	}
	if flags.Changed("key-sections") {
		req.ExtractKeySections = &f.keySections
	}
	if flags.Changed("images") {
		req.ProcessingImages = &f.images
	}
	if flags.Changed("max-chunk-size") {
		req.MaxChunkSize = &f.maxChunkSize
	}

	conv := c.converter()
	defer conv.Close(ctx)

	resp, err := conv.Convert(ctx, req)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), f.output, func(w io.Writer) error {
		if f.jsonOutput {
			return encodeJSON(w, resp)
		}
		_, err := io.WriteString(w, ensureNewline(resp.Result))
		return err
	})
}

// writeOutput runs write against path, or against stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

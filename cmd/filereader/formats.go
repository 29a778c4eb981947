// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leseb/filereader/pkg/core/options"
)

func newFormatsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported file extensions and output formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exts := c.converter().SupportedExtensions()
			outs := make([]string, len(options.OutputFormats))
			for i, f := range options.OutputFormats {
				outs[i] = string(f)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return encodeJSON(w, map[string]any{
					"extensions":     exts,
					"output_formats": outs,
				})
			}
			fmt.Fprintln(w, "Extensions:")
			for _, e := range exts {
				fmt.Fprintf(w, "  %s\n", e)
			}
			fmt.Fprintln(w, "Output formats:")
			for _, o := range outs {
				fmt.Fprintf(w, "  %s\n", o)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

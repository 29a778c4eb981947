// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	httpAdapter "github.com/leseb/filereader/pkg/adapters/http"
	"github.com/leseb/filereader/pkg/core/services"
)

func newEventCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "event [file | -]",
		Short: "Process a JSON convert request and print the JSON response",
		Long: `Reads a convert request as sent to POST /v1/convert, either bare or wrapped
in an envelope whose "body" field holds it, and prints the response envelope.
Use "-" to read the request from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEvent(cmd, args[0])
		},
	}
}

func (c *cli) runEvent(cmd *cobra.Command, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}

	req, err := httpAdapter.DecodeConvertRequest(data)
	if err != nil {
		return fmt.Errorf("%s: %w", services.CodeValidation, err)
	}

	conv := c.converter()
	defer conv.Close(cmd.Context())

	resp, err := conv.Convert(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("%s: %w", services.ErrorCode(err), err)
	}
	return encodeJSON(cmd.OutOrStdout(), resp)
}

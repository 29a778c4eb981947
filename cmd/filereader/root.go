// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leseb/filereader/pkg/core/config"
	"github.com/leseb/filereader/pkg/core/services"
	"github.com/leseb/filereader/pkg/observability/logging"
	_ "github.com/leseb/filereader/pkg/source/file"
	_ "github.com/leseb/filereader/pkg/source/s3"
)

// Version is set via ldflags during build
var Version = "dev"

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "filereader",
		Short: "Convert documents to markdown, plain text or JSON",
		Long: `filereader normalizes CSV, DOCX, XLSX, XLS, JSON, XML, YAML, TXT and PDF
documents into markdown, AI-oriented markdown, plain text or structured JSON.

Inputs can be local paths or s3://bucket/key URIs. Defaults come from the
optional config file and the usual environment variables (OUTPUT_FORMAT,
AI_OPTIMIZED, MAX_CHUNK_SIZE, DOCX_STRATEGY, AWS_REGION, ...).`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newConvertCmd(c),
		newEventCmd(c),
		newFormatsCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if c.configPath != "" {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		c.cfg = cfg
	} else {
		c.cfg = config.Default()
	}

	level := c.cfg.Logging.Level
	switch {
	case c.logLevel != "":
		level = c.logLevel
	case c.configPath == "" && os.Getenv("LOG_LEVEL") == "":
		// Keep stderr quiet unless asked.
		level = "warn"
	}
	c.logger = logging.New(logging.Config{
		Level:  level,
		Format: c.cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

// converter builds a Converter from the loaded configuration.
func (c *cli) converter() *services.Converter {
	return services.NewConverter(services.ConverterConfig{
		Defaults:   c.cfg.Reader.Options,
		TempDir:    c.cfg.Reader.TempDir,
		S3Region:   c.cfg.S3.Region,
		S3Endpoint: c.cfg.S3.Endpoint,
		Logger:     c.logger.Logger,
	})
}

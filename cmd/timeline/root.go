// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/holomush/timeline/internal/config"
	"github.com/holomush/timeline/internal/domain"
	"github.com/holomush/timeline/internal/generator"
	"github.com/holomush/timeline/internal/logging"
	"github.com/holomush/timeline/internal/reconstruct"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/seed"
	"github.com/holomush/timeline/internal/simerr"
	"github.com/holomush/timeline/internal/snapshot"
	"github.com/holomush/timeline/internal/xdg"
)

const serviceName = "timeline"

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	codec  *snapshot.Codec
}

// NewRootCmd creates the root command for the timeline CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Record, inspect and fork deterministic simulation timelines",
		Long: `timeline records a deterministic simulation as an event log with
periodic checkpoints, rebuilds the session at any recorded frame and forks
new live timelines from it with a fresh seed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRecordCmd(a))
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newVerifyCmd(a))
	cmd.AddCommand(newContinueCmd(a))
	cmd.AddCommand(newPlayCmd(a))
	cmd.AddCommand(newSchemaCmd())

	return cmd
}

// load reads configuration and sets up logging to the command's error
// stream.
func (a *app) load(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.Setup(serviceName, version, cfg.LogFormat, level, cmd.ErrOrStderr())
	a.codec = snapshot.NewCodec(snapshot.WithLogger(a.logger))
	return nil
}

func (a *app) reconstructor() *reconstruct.Reconstructor {
	return reconstruct.New(domain.Rules{},
		reconstruct.WithDecoder(a.codec),
		reconstruct.WithLogger(a.logger),
	)
}

func (a *app) generator() generator.Generator {
	return generator.NewRetrying(generator.NewDeterministic(),
		a.cfg.Generator.MaxRetries,
		a.cfg.Generator.BaseDelay,
		generator.WithRetryLogger(a.logger),
	)
}

func (a *app) engineOptions(extra ...domain.Option) []domain.Option {
	opts := []domain.Option{
		domain.WithCodec(a.codec),
		domain.WithCheckpointInterval(a.cfg.CheckpointInterval),
		domain.WithLogger(a.logger),
	}
	return append(opts, extra...)
}

// outputPath returns out, or a file named after id in the replay directory,
// and makes sure its directory exists.
func (a *app) outputPath(out string, id ulid.ULID) (string, error) {
	if out == "" {
		out = filepath.Join(a.cfg.ReplayDir, id.String()+replay.Extension)
	}
	if err := xdg.EnsureDir(filepath.Dir(out)); err != nil {
		return "", err
	}
	return out, nil
}

// resolveSeed returns s, or a fresh random root seed when s is zero.
func resolveSeed(s int64) (int64, error) {
	if s != 0 {
		return s, nil
	}
	return seed.NewRoot()
}

// checkOutput refuses to overwrite an existing out unless force is set.
func checkOutput(out string, force bool) error {
	if out == "" || force {
		return nil
	}
	if _, err := os.Stat(out); err == nil {
		return simerr.InvalidArgument("output file exists, use --force to overwrite", "path", out)
	}
	return nil
}

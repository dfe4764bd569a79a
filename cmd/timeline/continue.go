// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/timeline/internal/continuation"
	"github.com/holomush/timeline/internal/domain"
	"github.com/holomush/timeline/internal/logging"
	"github.com/holomush/timeline/internal/publish"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/simerr"
)

// Default values for continue command flags.
const defaultContinueFrames = 50

// continueConfig holds configuration for the continue command.
type continueConfig struct {
	frame  uint64
	seed   int64
	frames int
	out    string
	force  bool
}

func newContinueCmd(a *app) *cobra.Command {
	cfg := &continueConfig{}

	cmd := &cobra.Command{
		Use:   "continue <replay-file>",
		Short: "Fork a replay at a frame and keep simulating",
		Long: `Rebuild the session at --frame, reseed it and simulate further frames
live. The new timeline is saved as its own replay file whose header names
the parent replay and the fork frame. The parent file is not modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContinue(cmd, a, cfg, args[0])
		},
	}

	cmd.Flags().Uint64Var(&cfg.frame, "frame", 0, "frame to fork at")
	cmd.Flags().Int64Var(&cfg.seed, "seed", 0, "root seed for the new timeline (0 picks a random seed)")
	cmd.Flags().IntVar(&cfg.frames, "frames", defaultContinueFrames, "frames to simulate after the fork")
	cmd.Flags().StringVarP(&cfg.out, "out", "o", "", "output file (default: <replay-dir>/<replay-id>.replay.zst)")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite an existing output file")
	_ = cmd.MarkFlagRequired("frame")

	return cmd
}

func runContinue(cmd *cobra.Command, a *app, cfg *continueConfig, path string) error {
	if cfg.frames < 0 {
		return simerr.InvalidArgument("frames must not be negative", "frames", cfg.frames)
	}
	if err := checkOutput(cfg.out, cfg.force); err != nil {
		return err
	}
	newSeed, err := resolveSeed(cfg.seed)
	if err != nil {
		return err
	}

	f, err := replay.Load(cmd.Context(), path)
	if err != nil {
		return err
	}

	ctrl := continuation.NewController(a.reconstructor(), a.codec, continuation.WithLogger(a.logger))
	c, err := ctrl.ContinueFromFrame(cmd.Context(), f, cfg.frame, newSeed)
	if err != nil {
		return err
	}
	ctx := logging.WithReplay(cmd.Context(), c.Recorder.ID().String())

	pub := publish.New(publish.WithLogger(a.logger))
	defer pub.Close()
	live, err := a.startFeed(ctx, cmd, pub)
	if err != nil {
		return err
	}
	defer live.Stop()

	engine := domain.FromContinuation(c, a.generator(), a.engineOptions(domain.WithPublisher(pub))...)
	if err := engine.Run(ctx, cfg.frames); err != nil {
		return err
	}

	out, err := a.outputPath(cfg.out, c.Recorder.ID())
	if err != nil {
		return err
	}
	header, err := replay.Save(ctx, out, c.Recorder)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "forked %s at frame %d\n", f.Header.ReplayID, cfg.frame)
	printSummary(cmd, out, header)
	return nil
}

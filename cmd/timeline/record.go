// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/timeline/internal/domain"
	"github.com/holomush/timeline/internal/logging"
	"github.com/holomush/timeline/internal/publish"
	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
)

// Default values for record command flags.
const defaultRecordFrames = 100

// recordConfig holds configuration for the record command.
type recordConfig struct {
	frames    int
	seed      int64
	locations int
	npcs      int
	player    string
	out       string
	force     bool
}

func newRecordCmd(a *app) *cobra.Command {
	cfg := &recordConfig{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run the simulation and save its replay",
		Long: `Generate a world, run the simulation for the given number of frames
and save the recorded timeline as a replay file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, a, cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.frames, "frames", defaultRecordFrames, "frames to simulate after setup")
	cmd.Flags().Int64Var(&cfg.seed, "seed", 0, "root seed (0 picks a random seed)")
	cmd.Flags().IntVar(&cfg.locations, "locations", domain.DefaultSetup.Locations, "locations to generate")
	cmd.Flags().IntVar(&cfg.npcs, "npcs", domain.DefaultSetup.NPCs, "NPCs to spawn")
	cmd.Flags().StringVar(&cfg.player, "player", domain.DefaultSetup.PlayerName, "player name")
	cmd.Flags().StringVarP(&cfg.out, "out", "o", "", "output file (default: <replay-dir>/<replay-id>.replay.zst)")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite an existing output file")

	return cmd
}

func runRecord(cmd *cobra.Command, a *app, cfg *recordConfig) error {
	if cfg.frames < 0 {
		return simerr.InvalidArgument("frames must not be negative", "frames", cfg.frames)
	}
	if err := checkOutput(cfg.out, cfg.force); err != nil {
		return err
	}
	rootSeed, err := resolveSeed(cfg.seed)
	if err != nil {
		return err
	}

	rec := record.New(record.WithLogger(a.logger))
	ctx := logging.WithReplay(cmd.Context(), rec.ID().String())

	pub := publish.New(publish.WithLogger(a.logger))
	defer pub.Close()
	live, err := a.startFeed(ctx, cmd, pub)
	if err != nil {
		return err
	}
	defer live.Stop()

	engine := domain.NewEngine(session.New(rootSeed), rec, a.generator(),
		a.engineOptions(domain.WithPublisher(pub))...)
	if err := engine.Bootstrap(ctx, domain.Setup{
		Locations:  cfg.locations,
		NPCs:       cfg.npcs,
		PlayerName: cfg.player,
	}); err != nil {
		return err
	}
	if err := engine.Run(ctx, cfg.frames); err != nil {
		return err
	}

	path, err := a.outputPath(cfg.out, rec.ID())
	if err != nil {
		return err
	}
	header, err := replay.Save(ctx, path, rec)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "timeline recorded",
		"path", path,
		"root_seed", rootSeed,
		"frames", header.FrameCount,
	)
	printSummary(cmd, path, header)
	return nil
}

// printSummary writes the one-line result of a saved replay.
func printSummary(cmd *cobra.Command, path string, h *replay.Header) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "saved %s\n", path)
	_, _ = fmt.Fprintf(out, "replay %s: seed %d, %d frames, %d events, %d generator calls, %d checkpoints\n",
		h.ReplayID, h.RootSeed, h.FrameCount, h.EventCount, h.CallCount, h.CheckpointCount)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/timeline/internal/logging"
	"github.com/holomush/timeline/internal/replay"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <replay-file>",
		Short: "Check that a replay reproduces its own checkpoints",
		Long: `Validate a replay file, replay the events between each pair of
consecutive checkpoints and check that the later checkpoint is reproduced
byte for byte, then replay through the last recorded frame.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, a, args[0])
		},
	}
}

func runVerify(cmd *cobra.Command, a *app, path string) error {
	f, err := replay.Load(cmd.Context(), path)
	if err != nil {
		return err
	}
	ctx := logging.WithReplay(cmd.Context(), f.Header.ReplayID.String())
	out := cmd.OutOrStdout()

	r := a.reconstructor()
	checks, err := r.VerifyCheckpoints(ctx, f, a.codec)
	for _, c := range checks {
		status := "ok"
		if !c.Match {
			status = "MISMATCH"
		}
		_, _ = fmt.Fprintf(out, "checkpoint %d at frame %d: %s (%d events)\n", c.Index, c.Frame, status, c.EventsApplied)
	}
	if err != nil {
		return err
	}

	last := f.Header.FrameCount - 1
	if _, err := r.ReconstructAt(ctx, f, last); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "replay %s verified: %d checkpoints, %d events, frames 0-%d\n",
		f.Header.ReplayID, len(f.Checkpoints), len(f.Events), last)
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/timeline/internal/logging"
	"github.com/holomush/timeline/internal/publish"
	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/simerr"
)

// frameKind is the state update kind published once per played frame.
const frameKind = "frame"

// playConfig holds configuration for the play command.
type playConfig struct {
	to    uint64
	delay time.Duration
	kinds []string
	quiet bool
	hold  bool
}

func newPlayCmd(a *app) *cobra.Command {
	cfg := &playConfig{}

	cmd := &cobra.Command{
		Use:   "play <replay-file>",
		Short: "Play a replay back through the publisher",
		Long: `Replay a file frame by frame from its first checkpoint. Every recorded
event is broadcast and the session is published at the end of each frame,
to the terminal and, when feed.addr is set, to websocket clients.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, a, cfg, args[0])
		},
	}

	cmd.Flags().Uint64Var(&cfg.to, "to", 0, "last frame to play (default: last recorded frame)")
	cmd.Flags().DurationVar(&cfg.delay, "delay", 0, "pause between frames")
	cmd.Flags().StringSliceVar(&cfg.kinds, "kinds", nil, "event kind patterns to print (e.g. quest_*)")
	cmd.Flags().BoolVarP(&cfg.quiet, "quiet", "q", false, "do not print events")
	cmd.Flags().BoolVar(&cfg.hold, "hold", false, "keep serving the live feed after playback until interrupted")

	return cmd
}

func runPlay(cmd *cobra.Command, a *app, cfg *playConfig, path string) error {
	f, err := replay.Load(cmd.Context(), path)
	if err != nil {
		return err
	}
	last := f.Header.FrameCount - 1
	if cfg.to > 0 {
		if cfg.to > last {
			return simerr.FrameOutOfRange(cfg.to, f.Header.FrameCount)
		}
		last = cfg.to
	}
	ctx := logging.WithReplay(cmd.Context(), f.Header.ReplayID.String())

	pub := publish.New(publish.WithLogger(a.logger))
	defer pub.Close()
	if !cfg.quiet {
		if _, err := pub.Subscribe(printer(cmd.OutOrStdout(), cfg.kinds)); err != nil {
			return err
		}
	}
	live, err := a.startFeed(ctx, cmd, pub)
	if err != nil {
		return err
	}
	defer live.Stop()

	cursor, err := a.reconstructor().Open(ctx, f, 0)
	if err != nil {
		return err
	}
	for frame := cursor.Frame(); frame <= last; frame++ {
		events, err := cursor.Advance(ctx, frame)
		if err != nil {
			return err
		}
		for _, e := range events {
			pub.Broadcast(ctx, publish.CustomEvent{Name: string(e.Kind), Frame: e.Frame, Payload: e.Payload})
		}
		pub.Publish(ctx, cursor.Session(), frameKind, map[string]any{"events": len(events)})
		if frame < last {
			if err := pause(ctx, cfg.delay); err != nil {
				return err
			}
		}
	}

	a.logger.InfoContext(ctx, "playback finished", "frames", last+1, "events_applied", cursor.Applied())
	if cfg.hold && live != nil {
		<-ctx.Done()
	}
	return nil
}

// printer is a subscription that writes each event on one line.
func printer(w io.Writer, kinds []string) publish.Subscription {
	return publish.Subscription{
		Name:  "terminal",
		Kinds: kinds,
		OnEvent: func(_ context.Context, e publish.CustomEvent) error {
			_, err := fmt.Fprintf(w, "%6d  %-20s %s\n", e.Frame, e.Name, e.Payload)
			return err
		},
	}
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

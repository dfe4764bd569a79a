// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holomush/timeline/internal/replay"
	"github.com/holomush/timeline/internal/simerr"
)

// inspectConfig holds configuration for the inspect command.
type inspectConfig struct {
	full   bool
	format string
}

// inspectView is what inspect prints. Record statistics are filled only
// for a full inspection.
type inspectView struct {
	Path             string         `json:"path" yaml:"path"`
	Header           *replay.Header `json:"header" yaml:"header"`
	Validated        bool           `json:"validated" yaml:"validated"`
	EventKinds       map[string]int `json:"event_kinds,omitempty" yaml:"event_kinds,omitempty"`
	Operations       map[string]int `json:"generator_operations,omitempty" yaml:"generator_operations,omitempty"`
	CheckpointFrames []uint64       `json:"checkpoint_frames,omitempty" yaml:"checkpoint_frames,omitempty"`
}

func newInspectCmd() *cobra.Command {
	cfg := &inspectConfig{}

	cmd := &cobra.Command{
		Use:   "inspect <replay-file>",
		Short: "Show a replay file's header",
		Long: `Show a replay file's header. With --full the whole file is decoded
and validated and per-kind record counts are shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, cfg, args[0])
		},
	}

	cmd.Flags().BoolVar(&cfg.full, "full", false, "decode and validate the whole file")
	cmd.Flags().StringVarP(&cfg.format, "format", "f", "text", "output format (text, json or yaml)")

	return cmd
}

func runInspect(cmd *cobra.Command, cfg *inspectConfig, path string) error {
	switch cfg.format {
	case "text", "json", "yaml":
	default:
		return simerr.InvalidArgument("unknown output format", "format", cfg.format)
	}

	view := inspectView{Path: path}
	if cfg.full {
		f, err := replay.Load(cmd.Context(), path)
		if err != nil {
			return err
		}
		view.Header = &f.Header
		view.Validated = true
		view.EventKinds = make(map[string]int)
		for _, e := range f.Events {
			view.EventKinds[string(e.Kind)]++
		}
		view.Operations = make(map[string]int)
		for _, c := range f.GeneratorCalls {
			view.Operations[c.Operation]++
		}
		for _, cp := range f.Checkpoints {
			view.CheckpointFrames = append(view.CheckpointFrames, cp.Frame)
		}
	} else {
		h, err := replay.ReadHeader(path)
		if err != nil {
			return err
		}
		view.Header = h
	}

	out := cmd.OutOrStdout()
	switch cfg.format {
	case "json":
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal view: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return fmt.Errorf("failed to marshal view: %w", err)
		}
		return enc.Close()
	default:
		return formatInspectText(out, view)
	}
}

// formatInspectText writes view as an aligned two-column table.
func formatInspectText(out io.Writer, view inspectView) error {
	h := view.Header
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "file\t%s\n", view.Path)
	_, _ = fmt.Fprintf(w, "replay id\t%s\n", h.ReplayID)
	_, _ = fmt.Fprintf(w, "format\t%s\n", h.FormatVersion)
	_, _ = fmt.Fprintf(w, "root seed\t%d\n", h.RootSeed)
	_, _ = fmt.Fprintf(w, "created\t%s\n", h.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "frames\t%d\n", h.FrameCount)
	_, _ = fmt.Fprintf(w, "events\t%d\n", h.EventCount)
	_, _ = fmt.Fprintf(w, "generator calls\t%d\n", h.CallCount)
	_, _ = fmt.Fprintf(w, "checkpoints\t%d\n", h.CheckpointCount)
	if h.Origin != nil {
		_, _ = fmt.Fprintf(w, "forked from\t%s @ frame %d\n", h.Origin.ParentReplayID, h.Origin.ForkFrame)
	}

	if view.Validated {
		_, _ = fmt.Fprintf(w, "validated\tyes\n")
		_, _ = fmt.Fprintf(w, "checkpoint frames\t%v\n", view.CheckpointFrames)
		for _, kind := range sortedKeys(view.EventKinds) {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", kind, view.EventKinds[kind])
		}
		for _, op := range sortedKeys(view.Operations) {
			_, _ = fmt.Fprintf(w, "  call %s\t%d\n", op, view.Operations[op])
		}
	}
	return w.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

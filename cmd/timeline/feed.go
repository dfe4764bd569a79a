// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/timeline/internal/feed"
	"github.com/holomush/timeline/internal/observability"
	"github.com/holomush/timeline/internal/publish"
)

const feedShutdownTimeout = 5 * time.Second

// liveFeed serves publisher traffic to websocket clients while a command
// runs. A nil liveFeed is a disabled feed.
type liveFeed struct {
	server *observability.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// startFeed attaches a websocket hub to pub and serves it with the
// metrics and health endpoints on the configured feed address. It returns
// nil when no address is configured.
func (a *app) startFeed(ctx context.Context, cmd *cobra.Command, pub *publish.Publisher) (*liveFeed, error) {
	if a.cfg.Feed.Addr == "" {
		return nil, nil
	}

	server := observability.NewServer(a.cfg.Feed.Addr, func() bool { return true })
	hub := feed.NewHub(
		feed.WithLogger(a.logger),
		feed.WithCodec(a.codec),
		feed.WithMetrics(server.Metrics()),
	)
	server.Handle("/ws", hub)

	hubCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(hubCtx)
	}()

	if _, err := pub.Subscribe(hub.Subscription("feed")); err != nil {
		cancel()
		<-done
		return nil, err
	}
	if _, err := server.Start(); err != nil {
		cancel()
		<-done
		return nil, err
	}

	a.logger.InfoContext(ctx, "live feed listening", "addr", server.Addr())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "live feed on ws://%s/ws\n", server.Addr())
	return &liveFeed{server: server, cancel: cancel, done: done}, nil
}

// Stop disconnects clients and shuts the server down.
func (l *liveFeed) Stop() {
	if l == nil {
		return
	}
	l.cancel()
	<-l.done

	ctx, cancel := context.WithTimeout(context.Background(), feedShutdownTimeout)
	defer cancel()
	_ = l.server.Stop(ctx)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package replay

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/simerr"
)

var tracer = otel.Tracer("timeline/replay")

// Extension is the conventional replay file extension.
const Extension = ".replay.zst"

// Save writes the recorder's current log to path. The header is built from
// the same consistent export as the records, so its counts always match.
func Save(ctx context.Context, path string, rec *record.Recorder) (*Header, error) {
	f := FromLog(rec.Export(), time.Now().UTC().Round(0))
	if err := Write(ctx, path, f); err != nil {
		return nil, err
	}
	h := f.Header
	return &h, nil
}

// Write writes f to path as-is. The file appears atomically: it is written
// to a temporary file in the same directory, synced and renamed over path.
func Write(ctx context.Context, path string, f *File) (err error) {
	_, span := tracer.Start(ctx, "replay.write",
		trace.WithAttributes(
			attribute.String("replay.path", path),
			attribute.String("replay.id", f.Header.ReplayID.String()),
			attribute.Int("replay.events", len(f.Events)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return oops.With("path", path).Wrapf(err, "write replay")
	}

	size, err := writeAtomic(path, func(w io.Writer) error {
		return encode(w, f)
	})
	if err != nil {
		return err
	}
	filesSaved.Inc()
	bytesWritten.Observe(float64(size))
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) (size int64, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, oops.With("path", path).Wrapf(err, "create temporary replay file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return 0, oops.With("path", path).Wrapf(err, "encode replay")
	}
	if err = tmp.Chmod(0o644); err != nil {
		return 0, oops.With("path", path).Wrapf(err, "chmod replay")
	}
	if err = tmp.Sync(); err != nil {
		return 0, oops.With("path", path).Wrapf(err, "sync replay")
	}
	info, err := tmp.Stat()
	if err != nil {
		return 0, oops.With("path", path).Wrapf(err, "stat replay")
	}
	if err = tmp.Close(); err != nil {
		return 0, oops.With("path", path).Wrapf(err, "close replay")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return 0, oops.With("path", path).Wrapf(err, "rename replay")
	}
	return info.Size(), nil
}

// Load reads and validates the replay file at path. Any violated invariant
// fails with CORRUPT_REPLAY; a format this build cannot read fails with
// UNSUPPORTED_FORMAT.
func Load(ctx context.Context, path string) (f *File, err error) {
	_, span := tracer.Start(ctx, "replay.load",
		trace.WithAttributes(attribute.String("replay.path", path)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observeFailure(err)
		} else {
			filesLoaded.WithLabelValues("ok").Inc()
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return nil, oops.With("path", path).Wrapf(err, "load replay")
	}

	fh, err := os.Open(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "open replay")
	}
	defer func() { _ = fh.Close() }()

	f, err = decode(fh)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("replay.id", f.Header.ReplayID.String()),
		attribute.Int("replay.events", len(f.Events)),
	)
	return f, nil
}

// ReadHeader decodes only the header line of the file at path. It lets
// viewers identify a file without decoding its records.
func ReadHeader(path string) (*Header, error) {
	fh, err := os.Open(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "open replay")
	}
	defer func() { _ = fh.Close() }()

	sc, done, err := newScanner(fh)
	if err != nil {
		return nil, err
	}
	defer done()
	return scanHeader(sc)
}

func observeFailure(err error) {
	code, ok := simerr.CodeOf(err)
	if !ok {
		filesLoaded.WithLabelValues("error").Inc()
		return
	}
	switch code {
	case simerr.CodeCorruptReplay:
		filesLoaded.WithLabelValues("corrupt").Inc()
		invariant := "unknown"
		if oopsErr, ok := oops.AsOops(err); ok {
			if v, ok := oopsErr.Context()["invariant"].(string); ok {
				invariant = v
			}
		}
		corruptFiles.WithLabelValues(invariant).Inc()
	case simerr.CodeUnsupportedFormat:
		filesLoaded.WithLabelValues("unsupported").Inc()
	default:
		filesLoaded.WithLabelValues("error").Inc()
	}
}

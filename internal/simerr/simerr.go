// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package simerr defines the error taxonomy shared by the timeline packages.
//
// Every error is an oops error carrying one of the codes below plus
// structured context describing which invariant failed. Constructors never
// wrap an already-coded error, so the outermost code is the one callers see.
package simerr

import (
	"log/slog"

	"github.com/samber/oops"
)

// Error codes.
const (
	CodeAlreadyInitialized      = "ALREADY_INITIALIZED"
	CodeNotInitialized          = "NOT_INITIALIZED"
	CodeNonMonotonicFrame       = "NON_MONOTONIC_FRAME"
	CodeUnsupportedFormat       = "UNSUPPORTED_FORMAT"
	CodeCorruptReplay           = "CORRUPT_REPLAY"
	CodeNoCheckpointBeforeFrame = "NO_CHECKPOINT_BEFORE_FRAME"
	CodeFrameOutOfRange         = "FRAME_OUT_OF_RANGE"
	CodeReconstruction          = "RECONSTRUCTION_ERROR"
	CodeInvalidArgument         = "INVALID_ARGUMENT"
	CodeInvalidSnapshot         = "INVALID_SNAPSHOT"
)

// AlreadyInitialized reports a second Initialize on the same recorder.
func AlreadyInitialized(recorderID string) error {
	return oops.Code(CodeAlreadyInitialized).
		With("recorder_id", recorderID).
		Errorf("recorder %s already initialized", recorderID)
}

// NotInitialized reports a write to a recorder before Initialize.
func NotInitialized(recorderID, op string) error {
	return oops.Code(CodeNotInitialized).
		With("recorder_id", recorderID).
		With("op", op).
		Errorf("%s before recorder %s was initialized", op, recorderID)
}

// NonMonotonicFrame reports a write whose frame precedes the last recorded one.
func NonMonotonicFrame(op string, frame, lastFrame uint64) error {
	return oops.Code(CodeNonMonotonicFrame).
		With("op", op).
		With("frame", frame).
		With("last_frame", lastFrame).
		Errorf("%s at frame %d precedes last recorded frame %d", op, frame, lastFrame)
}

// UnsupportedFormat reports a format version this build cannot read.
func UnsupportedFormat(version, supported string) error {
	return oops.Code(CodeUnsupportedFormat).
		With("format_version", version).
		With("supported", supported).
		Errorf("unsupported format version %q (supported: %s)", version, supported)
}

// CorruptReplay reports a replay file violating one of its invariants.
// The invariant name is always present in the error context.
func CorruptReplay(invariant string, expected, actual any) error {
	return oops.Code(CodeCorruptReplay).
		With("invariant", invariant).
		With("expected", expected).
		With("actual", actual).
		Errorf("corrupt replay: %s: expected %v, got %v", invariant, expected, actual)
}

// CorruptReplayCause reports an unreadable replay file.
func CorruptReplayCause(invariant string, cause error) error {
	return oops.Code(CodeCorruptReplay).
		With("invariant", invariant).
		With("cause", cause.Error()).
		Errorf("corrupt replay: %s: %v", invariant, cause)
}

// NoCheckpointBeforeFrame reports a target frame with no checkpoint at or before it.
func NoCheckpointBeforeFrame(frame uint64) error {
	return oops.Code(CodeNoCheckpointBeforeFrame).
		With("frame", frame).
		Errorf("no checkpoint at or before frame %d", frame)
}

// FrameOutOfRange reports a target frame past the end of the log.
func FrameOutOfRange(frame, frameCount uint64) error {
	return oops.Code(CodeFrameOutOfRange).
		With("frame", frame).
		With("frame_count", frameCount).
		Errorf("frame %d out of range (frame count %d)", frame, frameCount)
}

// Reconstruction reports a failed session rebuild. Coded causes are flattened
// into context; uncoded causes (context cancellation) stay in the chain.
func Reconstruction(frame uint64, cause error) error {
	b := oops.Code(CodeReconstruction).With("frame", frame)
	if code, ok := CodeOf(cause); ok {
		return b.With("cause_code", code).
			With("cause", cause.Error()).
			Errorf("reconstruct frame %d: %v", frame, cause)
	}
	return b.Wrapf(cause, "reconstruct frame %d", frame)
}

// InvalidArgument reports a contract violation by the caller.
func InvalidArgument(reason string, kv ...any) error {
	b := oops.Code(CodeInvalidArgument).With("reason", reason)
	if len(kv) > 0 {
		b = b.With(kv...)
	}
	return b.Errorf("invalid argument: %s", reason)
}

// InvalidSnapshot reports a snapshot document that does not decode.
func InvalidSnapshot(version string, cause error) error {
	return oops.Code(CodeInvalidSnapshot).
		With("format_version", version).
		With("cause", cause.Error()).
		Errorf("invalid snapshot (version %s): %v", version, cause)
}

// CodeOf returns the oops code carried by err, if any.
func CodeOf(err error) (string, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "", false
	}
	code, ok := oopsErr.Code().(string)
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

// LogError logs err with its code and context when it is an oops error.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code, ok := CodeOf(err); ok {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
		return
	}
	logger.Error(msg, append(attrs, "error", err)...)
}

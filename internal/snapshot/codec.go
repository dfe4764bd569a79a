// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package snapshot encodes sessions into versioned, self-describing JSON
// documents for checkpoints and decodes every supported layout back.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/holomush/timeline/internal/session"
	"github.com/holomush/timeline/internal/simerr"
)

// Document is an encoded session envelope: {"version": ..., "session": ...}.
type Document = json.RawMessage

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) { c.logger = logger }
}

// WithoutValidation skips schema validation on Decode. Encode output is
// always schema-valid; this is for bulk replays of trusted files.
func WithoutValidation() Option {
	return func(c *Codec) { c.skipValidation = true }
}

// Codec converts sessions to and from snapshot documents. It is stateless
// and safe for concurrent use.
type Codec struct {
	logger         *slog.Logger
	skipValidation bool
}

// NewCodec creates a codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Encode writes s in the current layout. Equal sessions encode to equal bytes.
func (c *Codec) Encode(s *session.Session) (Document, error) {
	if s == nil {
		return nil, simerr.InvalidArgument("nil session")
	}
	data, err := json.Marshal(toWire(s))
	if err != nil {
		return nil, simerr.InvalidSnapshot(CurrentVersion, err)
	}
	return data, nil
}

// SnapshotFunc adapts Encode to the recorder's checkpoint callback. The
// session is encoded when the recorder invokes the callback.
func (c *Codec) SnapshotFunc(s *session.Session) func() (json.RawMessage, error) {
	return func() (json.RawMessage, error) {
		return c.Encode(s)
	}
}

// Decode reads doc written under formatVersion. The envelope's own version
// must share formatVersion's major version; an empty formatVersion defers
// to the envelope.
func (c *Codec) Decode(doc Document, formatVersion string) (*session.Session, error) {
	var envelope struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(doc, &envelope); err != nil {
		return nil, simerr.InvalidSnapshot(formatVersion, err)
	}
	if formatVersion == "" {
		formatVersion = envelope.Version
	}
	fv, err := ParseVersion(formatVersion)
	if err != nil {
		return nil, err
	}
	dv, err := ParseVersion(envelope.Version)
	if err != nil {
		return nil, err
	}
	if dv.Major() != fv.Major() {
		return nil, simerr.InvalidSnapshot(formatVersion,
			fmt.Errorf("document version %s does not match format version %s", envelope.Version, formatVersion))
	}

	switch dv.Major() {
	case 1:
		var w documentV1
		if err := strictUnmarshal(doc, &w); err != nil {
			return nil, simerr.InvalidSnapshot(envelope.Version, err)
		}
		s, err := fromWireV1(w.Session)
		if err != nil {
			return nil, simerr.InvalidSnapshot(envelope.Version, err)
		}
		c.logger.Debug("decoded legacy snapshot", "format_version", envelope.Version, "frame", s.Frame)
		return s, nil
	default:
		if !c.skipValidation {
			if err := ValidateDocument(doc); err != nil {
				return nil, simerr.InvalidSnapshot(envelope.Version, err)
			}
		}
		var w documentV2
		if err := strictUnmarshal(doc, &w); err != nil {
			return nil, simerr.InvalidSnapshot(envelope.Version, err)
		}
		s, err := fromWireV2(w.Session)
		if err != nil {
			return nil, simerr.InvalidSnapshot(envelope.Version, err)
		}
		return s, nil
	}
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

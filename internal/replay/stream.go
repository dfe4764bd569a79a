// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/holomush/timeline/internal/record"
	"github.com/holomush/timeline/internal/simerr"
)

// Record type tags.
const (
	typeEvent      = "event"
	typeCall       = "call"
	typeCheckpoint = "checkpoint"
)

// maxLineSize bounds one JSON line; checkpoints carry whole sessions.
const maxLineSize = 64 << 20

type writeLine struct {
	Type   string `json:"type"`
	Record any    `json:"record"`
}

type readLine struct {
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

// encode writes f to w as a zstd-compressed JSON line stream.
func encode(w io.Writer, f *File) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(zw)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	write := func() error {
		if err := enc.Encode(f.Header); err != nil {
			return fmt.Errorf("encode header: %w", err)
		}
		for i := range f.Events {
			if err := enc.Encode(writeLine{Type: typeEvent, Record: &f.Events[i]}); err != nil {
				return fmt.Errorf("encode event %d: %w", i, err)
			}
		}
		for i := range f.GeneratorCalls {
			if err := enc.Encode(writeLine{Type: typeCall, Record: &f.GeneratorCalls[i]}); err != nil {
				return fmt.Errorf("encode generator call %d: %w", i, err)
			}
		}
		for i := range f.Checkpoints {
			if err := enc.Encode(writeLine{Type: typeCheckpoint, Record: &f.Checkpoints[i]}); err != nil {
				return fmt.Errorf("encode checkpoint %d: %w", i, err)
			}
		}
		return bw.Flush()
	}
	if err := write(); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// newScanner opens the decompressed line stream of r.
func newScanner(r io.Reader) (*bufio.Scanner, func(), error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, simerr.CorruptReplayCause(InvariantHeader, err)
	}
	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return sc, zr.Close, nil
}

func scanHeader(sc *bufio.Scanner) (*Header, error) {
	if !sc.Scan() {
		err := sc.Err()
		if err == nil {
			err = errors.New("empty replay stream")
		}
		return nil, simerr.CorruptReplayCause(InvariantHeader, err)
	}
	var h Header
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil {
		return nil, simerr.CorruptReplayCause(InvariantHeader, err)
	}
	if err := validateHeader(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// decode reads a full stream. It checks the header and record tags but not
// the cross-record invariants; see File.Validate.
func decode(r io.Reader) (*File, error) {
	sc, done, err := newScanner(r)
	if err != nil {
		return nil, err
	}
	defer done()

	h, err := scanHeader(sc)
	if err != nil {
		return nil, err
	}
	f := &File{Header: *h}

	for n := 2; sc.Scan(); n++ {
		var line readLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return nil, simerr.CorruptReplayCause(InvariantRecordType, fmt.Errorf("line %d: %w", n, err))
		}
		switch line.Type {
		case typeEvent:
			var e record.Event
			if err := json.Unmarshal(line.Record, &e); err != nil {
				return nil, simerr.CorruptReplayCause(InvariantRecordType, fmt.Errorf("line %d: %w", n, err))
			}
			f.Events = append(f.Events, e)
		case typeCall:
			var c record.GeneratorCall
			if err := json.Unmarshal(line.Record, &c); err != nil {
				return nil, simerr.CorruptReplayCause(InvariantRecordType, fmt.Errorf("line %d: %w", n, err))
			}
			f.GeneratorCalls = append(f.GeneratorCalls, c)
		case typeCheckpoint:
			var cp record.Checkpoint
			if err := json.Unmarshal(line.Record, &cp); err != nil {
				return nil, simerr.CorruptReplayCause(InvariantRecordType, fmt.Errorf("line %d: %w", n, err))
			}
			f.Checkpoints = append(f.Checkpoints, cp)
		default:
			return nil, simerr.CorruptReplay(InvariantRecordType, "event, call or checkpoint", line.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, simerr.CorruptReplayCause(InvariantRecordType, err)
	}
	return f, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package snapshot

import (
	"github.com/Masterminds/semver/v3"

	"github.com/holomush/timeline/internal/simerr"
)

// Format versions.
const (
	// VersionV1 is the original layout: scalar affinity relationships,
	// memories without decay metadata, no failed quest state.
	VersionV1 = "1.0.0"
	// CurrentVersion is the layout Encode writes.
	CurrentVersion = "2.0.0"

	// SupportedRange is the semver constraint Decode accepts.
	SupportedRange = ">= 1.0.0, <= " + CurrentVersion
)

var supportedConstraint = mustConstraint(SupportedRange)

func mustConstraint(c string) *semver.Constraints {
	out, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return out
}

// ParseVersion parses a format version and checks that this build can
// decode it. Anything unparseable, older than 1.0.0 or newer than
// CurrentVersion fails with UNSUPPORTED_FORMAT.
func ParseVersion(version string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, simerr.UnsupportedFormat(version, SupportedRange)
	}
	if !supportedConstraint.Check(v) {
		return nil, simerr.UnsupportedFormat(version, SupportedRange)
	}
	return v, nil
}

// Supported reports whether version can be decoded.
func Supported(version string) bool {
	_, err := ParseVersion(version)
	return err == nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package simerrtest provides assertions for simerr errors in tests.
package simerrtest

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/timeline/internal/simerr"
)

// AssertCode asserts that err is an oops error with the given code.
func AssertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	got, ok := simerr.CodeOf(err)
	require.True(t, ok, "expected coded oops error, got %T: %v", err, err)
	assert.Equal(t, code, got, "error: %v", err)
}

// AssertContext asserts that err carries the given context key/value.
func AssertContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	require.Contains(t, ctx, key)
	assert.EqualValues(t, value, ctx[key])
}

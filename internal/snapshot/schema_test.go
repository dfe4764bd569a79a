// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, SchemaID, schema["$id"])
	assert.Equal(t, "Timeline Session Snapshot", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "version")
	assert.Contains(t, props, "session")
}

func TestValidateDocument(t *testing.T) {
	doc, err := NewCodec().Encode(sampleSession())
	require.NoError(t, err)
	assert.NoError(t, ValidateDocument(doc))

	assert.Error(t, ValidateDocument(nil))
	assert.Error(t, ValidateDocument([]byte(`{"version":"1.0.0","session":{"frame":0,"root_seed":0}}`)))
	assert.Error(t, ValidateDocument([]byte(`[]`)))
}

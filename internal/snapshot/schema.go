// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaID is the $id of the current snapshot schema.
const SchemaID = "https://holomush.dev/schemas/timeline-snapshot.schema.json"

// GenerateSchema generates the JSON Schema of the current document layout.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&documentV2{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Timeline Session Snapshot"
	schema.Description = "Checkpoint snapshot document, format version " + CurrentVersion

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(compileSchema)

func compileSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	schemaData, err := jschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("snapshot.schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := c.Compile("snapshot.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

// ValidateDocument validates a current-layout document against the schema.
func ValidateDocument(doc []byte) error {
	if len(doc) == 0 {
		return fmt.Errorf("snapshot document is empty")
	}
	data, err := jschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	if err := sch.Validate(data); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

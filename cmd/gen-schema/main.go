// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema writes the checkpoint snapshot JSON Schema file.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/holomush/timeline/internal/snapshot"
	"github.com/holomush/timeline/internal/xdg"
)

var defaultOut = filepath.Join("schemas", "timeline-snapshot.schema.json")

func main() {
	out := pflag.StringP("out", "o", defaultOut, "schema file to write")
	pflag.Parse()

	if err := run(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", *out)
}

// run writes the snapshot schema to out, creating its directory.
func run(out string) error {
	schema, err := snapshot.GenerateSchema()
	if err != nil {
		return err
	}
	if err := xdg.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	if err := os.WriteFile(out, append(schema, '\n'), 0o600); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pybake/internal/spec"
)

// LoadTools parses the tool profile YAML and validates schema_version.
// An empty path yields an empty File, so built-in presets apply.
func LoadTools(path string) (spec.File, error) {
	var f spec.File
	if path == "" {
		f.SchemaVersion = SupportedSchema
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("tools %s: %w", path, err)
	}
	if f.SchemaVersion == "" {
		f.SchemaVersion = SupportedSchema
	}
	if f.SchemaVersion != SupportedSchema {
		return f, fmt.Errorf("tools schema_version %q not supported (want %q)", f.SchemaVersion, SupportedSchema)
	}
	return f, nil
}

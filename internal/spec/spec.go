// Package spec holds the YAML shape of the tool profile file.
package spec

// ToolSpec describes one external command-line tool. Args may contain the
// placeholders {src}, {out}, {file} and {name}; they are expanded per call.
type ToolSpec struct {
	// Preset selects a built-in definition ("pyarmor", "nuitka", ...).
	// Fields set alongside it override the preset.
	Preset  string            `yaml:"preset"`
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`

	// ArtifactPatterns filter produced files by base name (filepath.Match).
	// Empty means every regular file counts.
	ArtifactPatterns []string `yaml:"artifact_patterns"`

	TimeoutMS int `yaml:"timeout_ms"` // 0 = no limit
}

type File struct {
	SchemaVersion string   `yaml:"schema_version"`
	Obfuscator    ToolSpec `yaml:"obfuscator"`
	Compiler      ToolSpec `yaml:"compiler"`
}

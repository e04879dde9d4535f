package toolchain

import (
	"fmt"
	"strings"
	"time"

	"pybake/internal/spec"
)

// Placeholders expanded in Tool.Args.
const (
	VarSrc  = "{src}"  // input directory
	VarOut  = "{out}"  // output directory
	VarFile = "{file}" // single source file (compiler)
	VarName = "{name}" // module name of {file}, without extension
)

type Tool struct {
	Name             string
	Command          string
	Args             []string
	Env              map[string]string
	ArtifactPatterns []string
	Timeout          time.Duration
}

// Vars holds placeholder values for one invocation.
type Vars struct {
	Src  string
	Out  string
	File string
	Name string
}

func (v Vars) expand(arg string) string {
	return strings.NewReplacer(
		VarSrc, v.Src,
		VarOut, v.Out,
		VarFile, v.File,
		VarName, v.Name,
	).Replace(arg)
}

// Argv returns the expanded argument list.
func (t Tool) Argv(v Vars) []string {
	out := make([]string, len(t.Args))
	for i, a := range t.Args {
		out[i] = v.expand(a)
	}
	return out
}

/*──────── presets ───────*/

var presets = map[string]Tool{
	// pyarmor 7.x: obfuscate a source tree into --output.
	"pyarmor": {
		Name:    "pyarmor",
		Command: "pyarmor",
		Args:    []string{"obfuscate", "--output", VarOut, "--recursive", VarSrc},
	},
	// pyarmor 8+: gen replaces obfuscate.
	"pyarmor8": {
		Name:    "pyarmor",
		Command: "pyarmor",
		Args:    []string{"gen", "--output", VarOut, "--recursive", VarSrc},
	},
	"nuitka": {
		Name:             "nuitka",
		Command:          "python3",
		Args:             []string{"-m", "nuitka", "--module", VarFile, "--output-dir=" + VarOut, "--remove-output", "--assume-yes-for-downloads"},
		ArtifactPatterns: []string{"*.so", "*.pyd"},
	},
	"cython": {
		Name:             "cython",
		Command:          "cythonize",
		Args:             []string{"-i", "-3", VarFile},
		ArtifactPatterns: []string{"*.so", "*.pyd"},
	},
}

// Preset returns a copy of a built-in tool definition.
func Preset(name string) (Tool, bool) {
	t, ok := presets[name]
	if !ok {
		return Tool{}, false
	}
	t.Args = append([]string(nil), t.Args...)
	t.ArtifactPatterns = append([]string(nil), t.ArtifactPatterns...)
	return t, true
}

// Resolve merges a YAML tool spec over its preset (or over def when the
// spec names neither a preset nor a command).
func Resolve(s spec.ToolSpec, def string) (Tool, error) {
	base := s.Preset
	if base == "" && s.Command == "" {
		base = def
	}
	var t Tool
	if base != "" {
		p, ok := Preset(base)
		if !ok {
			return Tool{}, fmt.Errorf("toolchain: unknown preset %q", base)
		}
		t = p
	}
	if s.Name != "" {
		t.Name = s.Name
	}
	if s.Command != "" {
		t.Command = s.Command
	}
	if len(s.Args) > 0 {
		t.Args = append([]string(nil), s.Args...)
	}
	if len(s.Env) > 0 {
		t.Env = s.Env
	}
	if len(s.ArtifactPatterns) > 0 {
		t.ArtifactPatterns = append([]string(nil), s.ArtifactPatterns...)
	}
	if s.TimeoutMS > 0 {
		t.Timeout = time.Duration(s.TimeoutMS) * time.Millisecond
	}
	if t.Name == "" {
		t.Name = t.Command
	}
	if t.Command == "" {
		return Tool{}, fmt.Errorf("toolchain: tool %q has no command", t.Name)
	}
	return t, nil
}

// Set is the pair of tools an orchestrator drives.
type Set struct {
	Obfuscator Tool
	Compiler   Tool
}

// NewSet resolves the obfuscator (default preset "pyarmor") and the
// compiler (default preset "nuitka") from a profile file.
func NewSet(f spec.File) (Set, error) {
	obf, err := Resolve(f.Obfuscator, "pyarmor")
	if err != nil {
		return Set{}, fmt.Errorf("obfuscator: %w", err)
	}
	comp, err := Resolve(f.Compiler, "nuitka")
	if err != nil {
		return Set{}, fmt.Errorf("compiler: %w", err)
	}
	return Set{Obfuscator: obf, Compiler: comp}, nil
}

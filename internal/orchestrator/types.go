package orchestrator

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"pybake/internal/toolchain"
)

type Mode string

const (
	Obfuscate            Mode = "obfuscate"
	Compile              Mode = "compile"
	ObfuscateThenCompile Mode = "obfuscate+compile"
)

var Modes = []Mode{Obfuscate, Compile, ObfuscateThenCompile}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "obfuscate":
		return Obfuscate, nil
	case "compile":
		return Compile, nil
	case "obfuscate+compile", "obfuscate_then_compile", "obfuscate-then-compile":
		return ObfuscateThenCompile, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
}

// UploadedFile is one named input buffer. Name must be a bare file name.
type UploadedFile struct {
	Name string
	Data []byte
}

// Stage records which step produced an artifact.
type Stage string

const (
	StageObfuscate   Stage = "obfuscate"
	StageCompile     Stage = "compile"
	StagePassthrough Stage = "passthrough"
)

type Artifact struct {
	Name     string // relative to the output directory, slash separated
	Data     []byte
	MIMEType string
	Stage    Stage
}

type Result struct {
	RequestID   string
	Mode        Mode
	Artifacts   []Artifact
	Invocations []*toolchain.Invocation
	Duration    time.Duration
}

// Outcome classifies a finished run for metrics and events.
func Outcome(res *Result, err error) string {
	switch {
	case err == nil:
		return "ok"
	case res != nil && len(res.Artifacts) > 0:
		return "partial"
	default:
		return "failed"
	}
}

func MIMEFor(name string) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".py":
		return "text/x-python"
	case ".so", ".pyd", ".pyc":
		return "application/octet-stream"
	case ".zip":
		return "application/zip"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoArtifacts  = errors.New("no artifacts produced")
)

// ToolError reports an external tool that exited non-zero or could not be
// started. Stderr is kept verbatim and is part of Error().
type ToolError struct {
	Tool     string
	Target   string
	ExitCode int
	Stderr   []byte
	Err      error // set when the tool did not start
}

func (e *ToolError) Error() string {
	var b strings.Builder
	b.WriteString(e.Tool)
	if e.Target != "" {
		fmt.Fprintf(&b, " (%s)", e.Target)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, " failed with exit status %d", e.ExitCode)
	}
	if len(e.Stderr) > 0 {
		b.WriteString(":\n")
		b.Write(e.Stderr)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

// ToolErrors flattens err (including errors.Join trees) into its tool failures.
func ToolErrors(err error) []*ToolError {
	var out []*ToolError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if te, ok := e.(*ToolError); ok {
			out = append(out, te)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

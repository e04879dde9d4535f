package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"pybake/internal/logging"
)

// Invocation is the captured outcome of one tool run.
type Invocation struct {
	Tool     string
	Target   string // compiled file, "" for directory-mode runs
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Produced []string // relative to the output dir, sorted
	Duration time.Duration
}

func (i *Invocation) Failed() bool { return i.ExitCode != 0 }

// waitDelay bounds how long Invoke waits for stray pipe holders after the
// tool itself has exited or been killed.
const waitDelay = 2 * time.Second

// Invoke runs t with the given placeholder values and working directory.
// A non-zero exit is reported through Invocation.ExitCode, not as an error.
// The error return is reserved for tools that could not be started and for
// runs cut short by ctx or t.Timeout; the latter wrap the context error.
func Invoke(ctx context.Context, t Tool, v Vars, dir string) (*Invocation, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	argv := t.Argv(v)
	cmd := exec.CommandContext(ctx, t.Command, argv...)
	cmd.Dir = dir
	cmd.Env = buildEnv(t.Env)
	cmd.WaitDelay = waitDelay
	killGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	inv := &Invocation{Tool: t.Name, Args: argv, ExitCode: -1}
	logging.L().Debug("tool invoke", "tool", t.Name, "command", t.Command, "args", argv)

	start := time.Now()
	err := cmd.Run()
	inv.Duration = time.Since(start)
	inv.Stdout, inv.Stderr = stdout.Bytes(), stderr.Bytes()

	if err == nil {
		inv.ExitCode = 0
		return inv, nil
	}
	if cmd.ProcessState != nil {
		inv.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && t.Timeout > 0 {
			return inv, fmt.Errorf("timed out after %s: %w", t.Timeout, ctxErr)
		}
		return inv, fmt.Errorf("stopped: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
		return inv, nil
	}
	return inv, fmt.Errorf("start %s: %w", t.Command, err)
}

// buildEnv inherits the host environment so tools find their interpreters
// and license files, then layers the tool's own variables on top.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"pybake/internal/logging"
	"pybake/internal/telemetry"
	"pybake/internal/toolchain"
)

type Options struct {
	Tools toolchain.Set

	// Root is the parent of per-request working directories ("" = os.TempDir()).
	Root string

	// MaxConcurrent bounds simultaneous runs; <= 0 means 1.
	MaxConcurrent int64

	// OnComplete, if set, is called after every run once the working
	// directory is gone.
	OnComplete func(*Result, error)
}

type Orchestrator struct {
	tools      toolchain.Set
	root       string
	gate       *semaphore.Weighted
	onComplete func(*Result, error)
}

func New(opts Options) *Orchestrator {
	n := opts.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	return &Orchestrator{
		tools:      opts.Tools,
		root:       opts.Root,
		gate:       semaphore.NewWeighted(n),
		onComplete: opts.OnComplete,
	}
}

// Run executes mode over files. Once inputs pass validation the returned
// Result is non-nil; a non-nil error alongside artifacts means some steps
// failed and the artifacts are what survived.
func (o *Orchestrator) Run(ctx context.Context, files []UploadedFile, mode Mode) (*Result, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	if err := o.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for run slot: %w", err)
	}
	defer o.gate.Release(1)

	res := &Result{RequestID: uuid.NewString(), Mode: mode}
	log := logging.L().With("request_id", res.RequestID, "mode", string(mode))
	log.Info("run started", "files", len(files))

	start := time.Now()
	err := o.run(ctx, res, files)
	res.Duration = time.Since(start)

	status := Outcome(res, err)
	telemetry.RecordRun(string(mode), status, res.Duration, len(res.Artifacts))
	if err != nil {
		log.Warn("run finished", "status", status, "artifacts", len(res.Artifacts), "duration", res.Duration, "err", err)
	} else {
		log.Info("run finished", "status", status, "artifacts", len(res.Artifacts), "duration", res.Duration)
	}
	if o.onComplete != nil {
		o.onComplete(res, err)
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, res *Result, files []UploadedFile) (err error) {
	ws, err := acquireWorkspace(o.root)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := ws.release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("workspace cleanup: %w", rerr))
		}
	}()

	if err := ws.writeInputs(files); err != nil {
		return err
	}

	stages := map[string]Stage{}
	var stepErr error

	switch res.Mode {
	case Obfuscate:
		produced, err := o.obfuscate(ctx, res, ws.Src, ws.Out)
		if err != nil {
			return err
		}
		for _, p := range produced {
			stages[p] = StageObfuscate
		}

	case Compile:
		var targets []string
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f.Name), ".py") {
				targets = append(targets, f.Name)
				continue
			}
			if err := copyFile(filepath.Join(ws.Src, f.Name), filepath.Join(ws.Out, f.Name)); err != nil {
				return err
			}
			stages[f.Name] = StagePassthrough
		}
		stepErr = o.compileAll(ctx, res, ws, ws.Src, targets, stages, nil)

	case ObfuscateThenCompile:
		produced, err := o.obfuscate(ctx, res, ws.Src, ws.Obf)
		if err != nil {
			return err
		}
		uploaded := make(map[string]bool, len(files))
		for _, f := range files {
			uploaded[f.Name] = strings.EqualFold(filepath.Ext(f.Name), ".py")
		}
		var targets []string
		for _, p := range produced {
			if uploaded[p] {
				targets = append(targets, p)
				continue
			}
			// runtime support files emitted by the obfuscator
			if err := copyFile(filepath.Join(ws.Obf, filepath.FromSlash(p)), filepath.Join(ws.Out, filepath.FromSlash(p))); err != nil {
				return err
			}
			stages[p] = StagePassthrough
		}
		var missing []error
		for _, f := range files {
			if uploaded[f.Name] && !slices.Contains(targets, f.Name) {
				missing = append(missing, fmt.Errorf("%s: %s: %w", o.tools.Obfuscator.Name, f.Name, ErrNoArtifacts))
			}
		}
		stepErr = errors.Join(append(missing, o.compileAll(ctx, res, ws, ws.Obf, targets, stages, fallbackTo(ws.Obf)))...)
	}

	arts, err := readArtifacts(ws.Out, stages)
	if err != nil {
		return errors.Join(stepErr, err)
	}
	res.Artifacts = arts
	if len(arts) == 0 && stepErr == nil {
		return ErrNoArtifacts
	}
	return stepErr
}

// obfuscate runs the directory-mode obfuscator from src into out and returns
// what it produced.
func (o *Orchestrator) obfuscate(ctx context.Context, res *Result, src, out string) ([]string, error) {
	tool := o.tools.Obfuscator
	inv, err := toolchain.Invoke(ctx, tool, toolchain.Vars{Src: src, Out: out}, filepath.Dir(src))
	res.Invocations = append(res.Invocations, inv)
	telemetry.RecordTool(tool.Name, err == nil && !inv.Failed())
	if err != nil {
		return nil, &ToolError{Tool: tool.Name, ExitCode: inv.ExitCode, Stderr: inv.Stderr, Err: err}
	}
	if inv.Failed() {
		return nil, &ToolError{Tool: tool.Name, ExitCode: inv.ExitCode, Stderr: inv.Stderr}
	}
	produced, err := toolchain.Collect(out, tool.ArtifactPatterns)
	if err != nil {
		return nil, err
	}
	inv.Produced = produced
	if len(produced) == 0 {
		return nil, fmt.Errorf("%s: %w", tool.Name, ErrNoArtifacts)
	}
	return produced, nil
}

// compileAll compiles each target (a path relative to src) on its own and
// keeps going after failures. When fallback is set, a failed target is
// replaced in the output by whatever fallback copies for it.
func (o *Orchestrator) compileAll(ctx context.Context, res *Result, ws *workspace, src string, targets []string,
	stages map[string]Stage, fallback func(rel, out string) error) error {
	var errs []error
	for _, rel := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		produced, err := o.compileOne(ctx, res, ws, src, rel)
		if err != nil {
			logging.L().Warn("compile failed", "request_id", res.RequestID, "file", rel, "err", err)
			errs = append(errs, err)
			if fallback != nil {
				if ferr := fallback(rel, ws.Out); ferr != nil {
					errs = append(errs, ferr)
				} else {
					stages[rel] = StageObfuscate
				}
			}
			continue
		}
		for _, p := range produced {
			stages[p] = StageCompile
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) compileOne(ctx context.Context, res *Result, ws *workspace, src, rel string) ([]string, error) {
	tool := o.tools.Compiler
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	build := filepath.Join(ws.Build, filepath.FromSlash(strings.TrimSuffix(rel, path.Ext(rel))))
	if err := os.MkdirAll(build, 0o755); err != nil {
		return nil, err
	}
	// the compiler works on a private copy so in-place tools leave src alone
	input := filepath.Join(build, path.Base(rel))
	if err := copyFile(filepath.Join(src, filepath.FromSlash(rel)), input); err != nil {
		return nil, err
	}

	vars := toolchain.Vars{Src: src, Out: build, File: input, Name: stem}
	inv, err := toolchain.Invoke(ctx, tool, vars, build)
	inv.Target = rel
	res.Invocations = append(res.Invocations, inv)
	telemetry.RecordTool(tool.Name, err == nil && !inv.Failed())
	if err != nil {
		return nil, &ToolError{Tool: tool.Name, Target: rel, ExitCode: inv.ExitCode, Stderr: inv.Stderr, Err: err}
	}
	if inv.Failed() {
		return nil, &ToolError{Tool: tool.Name, Target: rel, ExitCode: inv.ExitCode, Stderr: inv.Stderr}
	}

	found, err := toolchain.Collect(build, tool.ArtifactPatterns)
	if err != nil {
		return nil, err
	}
	dir := path.Dir(rel)
	var produced []string
	for _, f := range found {
		if f == path.Base(rel) {
			continue
		}
		name := path.Join(dir, path.Base(f))
		if err := copyFile(filepath.Join(build, filepath.FromSlash(f)), filepath.Join(ws.Out, filepath.FromSlash(name))); err != nil {
			return nil, err
		}
		produced = append(produced, name)
	}
	inv.Produced = produced
	if len(produced) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", tool.Name, rel, ErrNoArtifacts)
	}
	return produced, nil
}

func fallbackTo(dir string) func(rel, out string) error {
	return func(rel, out string) error {
		return copyFile(filepath.Join(dir, filepath.FromSlash(rel)), filepath.Join(out, filepath.FromSlash(rel)))
	}
}

func readArtifacts(out string, stages map[string]Stage) ([]Artifact, error) {
	names, err := toolchain.Collect(out, nil)
	if err != nil {
		return nil, err
	}
	arts := make([]Artifact, 0, len(names))
	for _, n := range names {
		raw, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(n)))
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", n, err)
		}
		arts = append(arts, Artifact{Name: n, Data: raw, MIMEType: MIMEFor(n), Stage: stages[n]})
	}
	return arts, nil
}

func validateFiles(files []UploadedFile) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no files", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.Name == "" || f.Name == "." || f.Name == ".." || strings.ContainsAny(f.Name, "/\\\x00") {
			return fmt.Errorf("%w: %q is not a plain file name", ErrInvalidInput, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate file %q", ErrInvalidInput, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pybake/internal/archive"
	"pybake/internal/config"
	"pybake/internal/engine"
	"pybake/internal/logging"
	"pybake/internal/orchestrator"
)

type runFlags struct {
	mode string
	out  string
	zip  string
}

func newRunCmd(configPath *string) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file.py>...",
		Short: "Transform local files once and write the results",
		Long: `run feeds the given files through the configured obfuscator and/or
compiler, exactly like one upload to the server, and writes what the tools
produced into --out, or into a single archive when --zip is set.

Partial results are written even when some files fail; the command then
exits non-zero and prints the tool output.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logging.InitFromEnv(cfg.Log.Level, cfg.Log.JSON)
			return runOnce(cmd, cfg, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(orchestrator.Obfuscate), "obfuscate, compile or obfuscate+compile")
	cmd.Flags().StringVarP(&f.out, "out", "o", "dist", "directory for produced files")
	cmd.Flags().StringVar(&f.zip, "zip", "", "write one ZIP archive to this path instead of --out")
	return cmd
}

func runOnce(cmd *cobra.Command, cfg config.Config, paths []string, f runFlags) error {
	mode, err := orchestrator.ParseMode(f.mode)
	if err != nil {
		return err
	}
	files := make([]orchestrator.UploadedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, orchestrator.UploadedFile{Name: filepath.Base(p), Data: data})
	}

	orch, err := engine.NewOrchestrator(cfg, nil)
	if err != nil {
		return err
	}
	res, runErr := orch.Run(cmd.Context(), files, mode)
	if res == nil {
		return runErr
	}

	if len(res.Artifacts) > 0 {
		if f.zip != "" {
			err = writeZip(f.zip, res.Artifacts)
		} else {
			err = writeFiles(f.out, res.Artifacts)
		}
		if err != nil {
			return err
		}
		report(cmd.OutOrStdout(), f, res)
	}
	if runErr != nil {
		return fmt.Errorf("%s %s:\n%w", mode, orchestrator.Outcome(res, runErr), runErr)
	}
	return nil
}

func writeZip(dst string, arts []orchestrator.Artifact) error {
	entries := make([]archive.Entry, len(arts))
	for i, a := range arts {
		entries[i] = archive.Entry{Name: a.Name, Data: a.Data}
	}
	raw, err := archive.Zip(entries)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(dst, raw, 0o644)
}

func writeFiles(dir string, arts []orchestrator.Artifact) error {
	for _, a := range arts {
		dst := filepath.Join(dir, filepath.FromSlash(a.Name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, a.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
	}
	return nil
}

func report(w io.Writer, f runFlags, res *orchestrator.Result) {
	if f.zip != "" {
		fmt.Fprintf(w, "%s (%d files)\n", f.zip, len(res.Artifacts))
		return
	}
	for _, a := range res.Artifacts {
		fmt.Fprintf(w, "%s\t%d\t%s\n", filepath.Join(f.out, filepath.FromSlash(a.Name)), len(a.Data), a.Stage)
	}
}

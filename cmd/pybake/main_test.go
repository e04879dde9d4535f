package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pybake/internal/archive"
)

const testTools = `schema_version: v1
obfuscator:
  name: fake-obf
  command: sh
  args: ["-c", "for f in \"$1\"/*.py; do { echo '# obf'; cat \"$f\"; } > \"$2/$(basename \"$f\")\"; done", "obf", "{src}", "{out}"]
compiler:
  name: fake-cc
  command: sh
  args: ["-c", "case \"$2\" in bad) echo \"cannot build $2\" >&2; exit 1;; esac; printf bin > \"$1/$2.so\"", "cc", "{out}", "{name}"]
  artifact_patterns: ["*.so"]
`

// setup writes a config, a tool profile and two sources into a temp dir.
func setup(t *testing.T) (dir, cfg string) {
	t.Helper()
	dir = t.TempDir()
	cfg = filepath.Join(dir, "pybake.yml")
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("pybake.yml", "schema_version: v1\ntools_file: tools.yml\nworkspace:\n  root: "+filepath.Join(dir, "work")+"\n")
	write("tools.yml", testTools)
	write("good.py", "print('good')\n")
	write("bad.py", "print('bad')\n")
	if err := os.Mkdir(filepath.Join(dir, "work"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir, cfg
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute("version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "pybake "+Version) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRun_ObfuscateToDir(t *testing.T) {
	dir, cfg := setup(t)
	outDir := filepath.Join(dir, "dist")

	if _, err := execute("run", "-c", cfg, "--out", outDir, filepath.Join(dir, "good.py")); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "good.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "# obf\nprint('good')\n" {
		t.Fatalf("unexpected artifact %q", got)
	}
	if left, _ := os.ReadDir(filepath.Join(dir, "work")); len(left) != 0 {
		t.Fatalf("working directories left behind: %v", left)
	}
}

func TestRun_CompileZipKeepsPartialResult(t *testing.T) {
	dir, cfg := setup(t)
	zipPath := filepath.Join(dir, "out", "build.zip")

	_, err := execute("run", "-c", cfg, "--mode", "compile", "--zip", zipPath,
		filepath.Join(dir, "good.py"), filepath.Join(dir, "bad.py"))
	if err == nil || !strings.Contains(err.Error(), "cannot build bad") {
		t.Fatalf("want compile failure with stderr, got %v", err)
	}

	raw, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatalf("partial archive not written: %v", err)
	}
	entries, err := archive.Unzip(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "good.so" || string(entries[0].Data) != "bin" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestRun_RejectsUnknownMode(t *testing.T) {
	dir, cfg := setup(t)
	if _, err := execute("run", "-c", cfg, "--mode", "minify", filepath.Join(dir, "good.py")); err == nil {
		t.Fatal("want error for unknown mode")
	}
}

func TestHealth_FailsWithoutServer(t *testing.T) {
	if _, err := execute("health", "--addr", "127.0.0.1:1", "--timeout", "1s"); err == nil {
		t.Fatal("want probe error when nothing listens")
	}
}

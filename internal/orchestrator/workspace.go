package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
)

// workspace is the per-request scratch tree:
//
//	<root>/src    uploaded inputs
//	<root>/obf    obfuscator output (chained mode)
//	<root>/out    final outputs
//	<root>/build  per-file compiler scratch
type workspace struct {
	Root  string
	Src   string
	Obf   string
	Out   string
	Build string
}

func acquireWorkspace(parent string) (*workspace, error) {
	root, err := os.MkdirTemp(parent, "pybake-*")
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	w := &workspace{
		Root:  root,
		Src:   filepath.Join(root, "src"),
		Obf:   filepath.Join(root, "obf"),
		Out:   filepath.Join(root, "out"),
		Build: filepath.Join(root, "build"),
	}
	for _, d := range []string{w.Src, w.Obf, w.Out, w.Build} {
		if err := os.Mkdir(d, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return nil, fmt.Errorf("workspace: %w", err)
		}
	}
	return w, nil
}

func (w *workspace) release() error {
	return os.RemoveAll(w.Root)
}

func (w *workspace) writeInputs(files []UploadedFile) error {
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(w.Src, f.Name), f.Data, 0o644); err != nil {
			return fmt.Errorf("write input %s: %w", f.Name, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, raw, 0o644)
}

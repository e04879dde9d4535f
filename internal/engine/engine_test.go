package engine

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pybake/internal/config"
	"pybake/internal/orchestrator"
	"pybake/sink"
)

type captureSink struct {
	mu     sync.Mutex
	events []*sink.Event
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Close() error        { return nil }
func (c *captureSink) Publish(ev *sink.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		SchemaVersion: config.SupportedSchema,
		Server: config.ServerCfg{
			HTTPAddr:          "127.0.0.1:0",
			MaxUploadBytes:    1 << 20,
			AllowedExtensions: []string{".py"},
			ShutdownTimeout:   2 * time.Second,
		},
		Workspace: config.WorkspaceCfg{Root: t.TempDir(), MaxConcurrent: 1},
		Events:    config.EventsCfg{Sinks: []string{"log"}},
	}
}

func TestBuildSinks(t *testing.T) {
	f, err := BuildSinks(config.EventsCfg{Sinks: []string{"log"}})
	if err != nil {
		t.Fatalf("log sink: %v", err)
	}
	_ = f.Close()

	if _, err := BuildSinks(config.EventsCfg{Sinks: []string{"carrier-pigeon"}}); err == nil {
		t.Fatal("want error for unknown sink")
	}
	_, err = BuildSinks(config.EventsCfg{Sinks: []string{"log", "kafka"}})
	if err == nil || !strings.Contains(err.Error(), "no brokers") {
		t.Fatalf("want kafka broker error, got %v", err)
	}
}

func TestNewOrchestrator_PublishesRunEvents(t *testing.T) {
	dir := t.TempDir()
	tools := filepath.Join(dir, "tools.yml")
	raw := `schema_version: v1
obfuscator:
  name: fake-obf
  command: sh
  args: ["-c", "cp \"$1\"/*.py \"$2\"/", "obf", "{src}", "{out}"]
compiler:
  name: fake-cc
  command: sh
  args: ["-c", "echo boom >&2; exit 3"]
`
	if err := os.WriteFile(tools, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.ToolsFile = tools

	capture := &captureSink{}
	orch, err := NewOrchestrator(cfg, sink.NewFanout(capture))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	files := []orchestrator.UploadedFile{{Name: "a.py", Data: []byte("print(1)")}}
	if _, err := orch.Run(context.Background(), files, orchestrator.Obfuscate); err != nil {
		t.Fatalf("obfuscate: %v", err)
	}
	if _, err := orch.Run(context.Background(), files, orchestrator.Compile); err == nil {
		t.Fatal("want compile failure")
	}

	if len(capture.events) != 2 {
		t.Fatalf("want 2 events, got %d", len(capture.events))
	}
	ok, failed := capture.events[0], capture.events[1]
	if ok.Status != "ok" || len(ok.Artifacts) != 1 || ok.Artifacts[0] != "a.py" {
		t.Fatalf("unexpected ok event %+v", ok)
	}
	if failed.Status != "failed" || len(failed.FailedTargets) != 1 || !strings.Contains(failed.Error, "boom") {
		t.Fatalf("unexpected failed event %+v", failed)
	}
}

func TestNewOrchestrator_BadToolsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ToolsFile = filepath.Join(t.TempDir(), "absent.yml")
	if _, err := NewOrchestrator(cfg, nil); err == nil {
		t.Fatal("want error for missing tools file")
	}
}

func TestEngine_ServesAndShutsDown(t *testing.T) {
	e, err := Bootstrap(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	url := "http://" + e.HTTPAddr().String() + "/healthz"
	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Get(url)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(Runs.WithLabelValues("compile", "failed"))
	beforeArtifacts := testutil.ToFloat64(Artifacts.WithLabelValues("compile"))

	RecordRun("compile", "failed", 120*time.Millisecond, 0)
	RecordRun("compile", "ok", time.Second, 3)

	if got := testutil.ToFloat64(Runs.WithLabelValues("compile", "failed")); got != before+1 {
		t.Fatalf("failed runs: want %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(Artifacts.WithLabelValues("compile")); got != beforeArtifacts+3 {
		t.Fatalf("artifacts: want %v, got %v", beforeArtifacts+3, got)
	}
}

func TestRecordTool(t *testing.T) {
	RecordTool("pyarmor", true)
	RecordTool("pyarmor", false)
	RecordTool("pyarmor", false)
	if got := testutil.ToFloat64(ToolInvocations.WithLabelValues("pyarmor", "failed")); got < 2 {
		t.Fatalf("want at least 2 failed invocations, got %v", got)
	}
}

func TestExpose_DisabledOnZeroPort(t *testing.T) {
	if srv := Expose(0); srv != nil {
		t.Fatal("expected nil server for port 0")
	}
}

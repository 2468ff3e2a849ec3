package l3planes

import (
	"bytes"
	"strings"
	"testing"

	"github.com/banshee-data/normals.report/internal/surface/l2normals"
)

func TestSetLogWriters_Disable(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(LogWriters{Ops: &buf})
	SetLogWriters(LogWriters{})

	if opsLogger != nil || diagLogger != nil || traceLogger != nil {
		t.Fatal("loggers should be nil after SetLogWriters(LogWriters{})")
	}
	opsf("discarded %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output once disabled, got %q", buf.String())
	}
}

func TestLogStreams_EngineRouting(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	defer SetLogWriters(LogWriters{})

	e, err := NewEngine(testConfig(10, 0, 0.9))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(l2normals.Uniform(2, 2, axisZ, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(l2normals.Uniform(2, 2, axisX, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(nil); err == nil {
		t.Fatal("expected nil frame to be rejected")
	}

	if got := ops.String(); !strings.Contains(got, "frame 3 rejected") || !strings.Contains(got, "[planes]") {
		t.Errorf("ops stream missing rejection, got %q", got)
	}
	if got := diag.String(); !strings.Contains(got, "born cluster 1") || !strings.Contains(got, "retired cluster 0") {
		t.Errorf("diag stream missing lifecycle events, got %q", got)
	}
	if got := trace.String(); !strings.Contains(got, "frame 2: valid=4") {
		t.Errorf("trace stream missing frame summary, got %q", got)
	}
}

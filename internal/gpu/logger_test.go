//go:build !nogpu

package gpu

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestExecutorLogger(t *testing.T) {
	var e Executor
	if e.log().Enabled(t.Context(), slog.LevelError) {
		t.Error("zero executor logger should be silent")
	}

	var buf bytes.Buffer
	e.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	e.log().Debug("gpu: pipeline compiled", "variant", "curl")
	if out := buf.String(); !strings.Contains(out, "backend=wgpu") || !strings.Contains(out, "variant=curl") {
		t.Errorf("record = %q, want backend and variant attributes", out)
	}

	buf.Reset()
	e.SetLogger(nil)
	e.log().Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("nil logger still wrote %q", buf.String())
	}
}

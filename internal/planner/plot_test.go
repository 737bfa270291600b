package planner

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderPNG(t *testing.T) {
	wps, err := Sweep(squareField, DefaultParams())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderPNG(&buf, squareField, wps, "sweep"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("output is not a PNG")
	}
}

func TestSavePNGCreatesDirectories(t *testing.T) {
	wps, _ := Sweep(squareField, DefaultParams())
	path := filepath.Join(t.TempDir(), "plots", "plan.png")
	if err := SavePNG(path, squareField, wps, "plan"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty file, err=%v", err)
	}
}

func TestRenderPNGRejectsEmptyPath(t *testing.T) {
	if err := RenderPNG(&bytes.Buffer{}, squareField, nil, "empty"); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRepository_Get(t *testing.T) {
	ctx := context.Background()

	p, err := NewFileRepository("").Get(ctx)
	if p != nil || err != nil {
		t.Fatalf("Get with no path = %v, %v, want nil, nil", p, err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "lifecycle.rego")
	rules := "package ewaste.lifecycle\n\ndefault allow := true\n"
	if err := os.WriteFile(path, []byte(rules), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p, err = NewFileRepository(path).Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name != "lifecycle.rego" || p.Rules != rules {
		t.Errorf("policy = %+v", p)
	}

	if _, err := NewFileRepository(filepath.Join(dir, "missing.rego")).Get(ctx); err == nil {
		t.Error("Get on missing file: want error")
	}

	empty := filepath.Join(dir, "empty.rego")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewFileRepository(empty).Get(ctx); err == nil {
		t.Error("Get on empty file: want error")
	}
}

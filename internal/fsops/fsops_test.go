package fsops

import (
	"testing"

	"github.com/spf13/afero"
)

func TestEnsureDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	path := "/test/nested/dir"
	if err := EnsureDir(fs, path, 0755); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	if !IsDir(fs, path) {
		t.Error("expected directory to exist and be a directory")
	}

	// Idempotent
	if err := EnsureDir(fs, path, 0755); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()

	afero.WriteFile(fs, "/test.txt", []byte("test"), 0644)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", "/test.txt", true},
		{"non-existing file", "/nonexistent.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exists(fs, tt.path)
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	fs.MkdirAll("/some/dir", 0755)
	afero.WriteFile(fs, "/some/file", []byte("x"), 0644)

	if !IsDir(fs, "/some/dir") {
		t.Error("expected directory")
	}
	if IsDir(fs, "/some/file") {
		t.Error("expected file, not directory")
	}
	if IsDir(fs, "/missing") {
		t.Error("expected missing path to not be a directory")
	}
}

func TestCheckWritable(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/writable", 0755)

	if err := CheckWritable(fs, "/writable"); err != nil {
		t.Errorf("CheckWritable() error = %v", err)
	}

	// The probe file must not be left behind
	if Exists(fs, "/writable/.write_test") {
		t.Error("expected probe file to be removed")
	}

	ro := afero.NewReadOnlyFs(fs)
	if err := CheckWritable(ro, "/writable"); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

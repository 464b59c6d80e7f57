package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSearchPaths(t *testing.T) {
	tmpDir := t.TempDir()

	file1 := filepath.Join(tmpDir, "file1.txt")
	file2 := filepath.Join(tmpDir, "file2.txt")
	if err := os.WriteFile(file1, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name    string
		paths   []string
		want    string
		wantErr bool
	}{
		{
			"finds first existing file",
			[]string{file2, file1},
			file1,
			false,
		},
		{
			"returns error when no files exist",
			[]string{file2, filepath.Join(tmpDir, "nonexistent.txt")},
			"",
			true,
		},
		{
			"handles empty path list",
			[]string{},
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SearchPaths(tt.paths)
			if (err != nil) != tt.wantErr {
				t.Errorf("SearchPaths() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SearchPaths() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchPathsOptional(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "file1.txt")
	if err := os.WriteFile(file1, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if got := SearchPathsOptional([]string{filepath.Join(tmpDir, "missing"), file1}); got != file1 {
		t.Errorf("SearchPathsOptional() = %v, want %v", got, file1)
	}
	if got := SearchPathsOptional([]string{filepath.Join(tmpDir, "missing")}); got != "" {
		t.Errorf("SearchPathsOptional() = %v, want empty string", got)
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	paths := DefaultConfigPaths("test.yaml")

	if len(paths) != 4 {
		t.Fatalf("DefaultConfigPaths() returned %d paths, want 4", len(paths))
	}

	for i, path := range paths {
		if !strings.HasSuffix(path, "test.yaml") {
			t.Errorf("DefaultConfigPaths()[%d] = %v, should end with 'test.yaml'", i, path)
		}
	}

	if !strings.Contains(paths[2], AppName) {
		t.Errorf("DefaultConfigPaths()[2] should be under the user config dir, got %v", paths[2])
	}

	if !strings.HasPrefix(paths[3], "/etc/launchpad") {
		t.Errorf("DefaultConfigPaths()[3] should start with /etc/launchpad, got %v", paths[3])
	}
}

func TestEnsureParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "a", "b", "cookies.db")

	if err := EnsureParentDir(target); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Dir(target))
	if err != nil {
		t.Fatalf("Parent directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("Expected parent path to be a directory")
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"existing file", file, true},
		{"directory", tmpDir, false},
		{"nonexistent", filepath.Join(tmpDir, "nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileExists(tt.path); got != tt.want {
				t.Errorf("FileExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

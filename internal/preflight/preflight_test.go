package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sam/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCamera(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "video%d")
	if result := CheckCamera(pattern); result.Passed {
		t.Fatalf("expected failure without devices, got %+v", result)
	}
	if err := os.WriteFile(filepath.Join(dir, "video0"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCamera(pattern); !result.Passed {
		t.Fatalf("expected pass with a device, got %+v", result)
	}
}

func TestCheckLateMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.png")
	if result := CheckLateMarker(path); result.Passed || !result.Optional {
		t.Fatalf("expected optional failure for missing image, got %+v", result)
	}
	testsupport.WritePNG(t, path, 8)
	if result := CheckLateMarker(path); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL+"/sam"); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	if result := CheckNtfy(context.Background(), "not a url"); result.Passed {
		t.Fatal("expected failure for invalid url")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil, got %v", results)
	}
}

func TestRunAll_Config(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Data directory", "Log directory", "Backup directory", "Report directory"} {
		if !byName[name].Passed {
			t.Errorf("%s failed: %s", name, byName[name].Detail)
		}
	}
	if _, ok := byName["ntfy"]; ok {
		t.Error("ntfy checked without a topic")
	}
}

package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"sam/internal/testsupport"
)

func TestProcessInfoWithoutDaemon(t *testing.T) {
	alive, pid, err := ProcessInfo(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil || alive || pid != 0 {
		t.Fatalf("ProcessInfo = (%v, %d, %v)", alive, pid, err)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg.SocketPath(), cfg, 0); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "sam.pid")
	if _, err := ForceKillProcess(pidPath, "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestOfflineStatusSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	status, err := BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if status.Running {
		t.Fatal("offline snapshot reports running")
	}
	if status.DatabasePath != cfg.Paths.Database || status.Today.ScanCount != 0 {
		t.Fatalf("unexpected offline snapshot: %+v", status)
	}
}

func TestIsDaemonUnavailable(t *testing.T) {
	for _, err := range []error{os.ErrNotExist, syscall.ENOENT, syscall.ECONNREFUSED} {
		if !isDaemonUnavailable(err) {
			t.Errorf("isDaemonUnavailable(%v) = false", err)
		}
	}
	if isDaemonUnavailable(errors.New("boom")) {
		t.Error("generic error treated as unavailable")
	}
}

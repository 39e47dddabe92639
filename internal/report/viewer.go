package report

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Viewer displays a file to the user.
type Viewer interface {
	View(ctx context.Context, path string) error
}

// SystemViewer launches the platform's default application.
type SystemViewer struct{}

// View starts the viewer and returns without waiting for it to exit.
func (SystemViewer) View(_ context.Context, path string) error {
	name, args := viewerCommand(runtime.GOOS, path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func viewerCommand(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

// ViewerBinary is the command SystemViewer runs on this platform.
func ViewerBinary() string {
	name, _ := viewerCommand(runtime.GOOS, "")
	return name
}

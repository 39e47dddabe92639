package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"sam/internal/camera"
	"sam/internal/report"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCamera reports the capture devices matching pattern.
func CheckCamera(pattern string) Result {
	const name = "Camera"
	devices := camera.ListDevices(pattern, maxProbedCameras)
	if len(devices) == 0 {
		return Result{Name: name, Detail: "no video devices found"}
	}
	for _, dev := range devices {
		if unix.Access(dev, unix.R_OK|unix.W_OK) == nil {
			return Result{Name: name, Passed: true, Detail: strings.Join(devices, ", ")}
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable; add the user to the video group)", strings.Join(devices, ", "))}
}

// CheckLateMarker verifies the image stamped into late SF2 cells.
func CheckLateMarker(path string) Result {
	const name = "Late marker"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Optional: true, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (missing; late cells stay unmarked)", path)}
	}
	if info.IsDir() {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: path}
}

// CheckViewer verifies the desktop command used to open the SF2 workbook.
func CheckViewer() Result {
	const name = "Report viewer"
	command := report.ViewerBinary()
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("binary %q not found", command)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: resolved}
}

// CheckNtfy verifies that the ntfy server behind topic answers.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"

	parsed, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("invalid topic url %q", topic)}
	}
	base := parsed.Scheme + "://" + parsed.Host

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/v1/health", nil)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Name: name, Passed: true, Optional: true, Detail: base}
	}
	return Result{Name: name, Optional: true, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
}

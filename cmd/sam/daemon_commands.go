package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"sam/internal/api"
	"sam/internal/daemonctl"
	"sam/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startCamera bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the sam daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), StartCamera: startCamera},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				if result.PID > 0 {
					fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
				} else {
					fmt.Fprintln(stdout, "Daemon started")
				}
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startCamera, "camera", false, "Start the camera once the daemon is up")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the sam daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, camera and attendance status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range renderStatus(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("System Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, check := range preflight.RunAll(cmd.Context(), ctx.configValue()) {
				fmt.Fprintln(stdout, renderStatusLine(check.Name, checkKind(check), check.Detail, colorize))
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(status *api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		detail := "Running"
		if status.PID > 0 {
			detail = "Running (pid " + strconv.Itoa(status.PID) + ")"
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	if status.StartedAt != "" {
		lines = append(lines, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
	}
	if status.APIAddress != "" {
		lines = append(lines, renderStatusLine("HTTP API", statusInfo, status.APIAddress, colorize))
	}
	if status.ShutdownRequested {
		lines = append(lines, renderStatusLine("Shutdown", statusWarn, "Requested", colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Camera", colorize)...)
	cameraKind := statusInfo
	cameraDetail := fmt.Sprintf("Idle (index %d)", status.Camera.Index)
	if status.Camera.Active {
		cameraKind = statusOK
		cameraDetail = fmt.Sprintf("Scanning (index %d, %d frames)", status.Camera.Index, status.Camera.Frames)
	}
	lines = append(lines, renderStatusLine("Camera", cameraKind, cameraDetail, colorize))
	if status.Camera.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.Camera.LastError, colorize))
	}
	if len(status.Camera.Devices) > 0 {
		lines = append(lines, renderStatusLine("Devices", statusInfo, fmt.Sprint(status.Camera.Devices), colorize))
	}
	lines = append(lines, renderStatusLine("Hotplug", statusInfo, yesNo(status.Hotplug), colorize))
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Storage", colorize)...)
	lines = append(lines, pathStatusLine("Database", status.DatabasePath, colorize))
	lines = append(lines, pathStatusLine("SF2 report", status.ReportPath, colorize))
	lines = append(lines, pathStatusLine("Settings", status.SettingsPath, colorize))
	if status.LastBackup != "" {
		lines = append(lines, renderStatusLine("Last backup", statusOK, status.LastBackup, colorize))
	} else {
		lines = append(lines, renderStatusLine("Last backup", statusWarn, "None", colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Today", colorize)...)
	lines = append(lines, renderStatusLine("Date", statusInfo, status.Today.Date, colorize))
	lines = append(lines, renderStatusLine("Scans", statusInfo, strconv.Itoa(status.Today.ScanCount), colorize))
	return lines
}

func checkKind(check preflight.Result) statusKind {
	switch {
	case check.Passed:
		return statusOK
	case check.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func pathStatusLine(label, path string, colorize bool) string {
	if path == "" {
		return renderStatusLine(label, statusWarn, "Not configured", colorize)
	}
	if _, err := os.Stat(path); err != nil {
		return renderStatusLine(label, statusWarn, path+" (missing)", colorize)
	}
	return renderStatusLine(label, statusOK, path, colorize)
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

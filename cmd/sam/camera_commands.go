package main

import (
	"github.com/spf13/cobra"

	"sam/internal/ipc"
)

func newCameraCommand(ctx *commandContext) *cobra.Command {
	cameraCmd := &cobra.Command{
		Use:   "camera",
		Short: "Control the QR scanning camera",
	}

	call := func(use, short string, fn func(*ipc.Client) (*ipc.Response, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := fn(client)
					return reportResponse(cmd, resp, err)
				})
			},
		}
	}

	cameraCmd.AddCommand(
		call("start", "Open the camera and start scanning", (*ipc.Client).CameraStart),
		call("stop", "Stop scanning and release the camera", (*ipc.Client).CameraStop),
		call("toggle", "Start the camera if stopped, stop it if running", (*ipc.Client).CameraToggle),
	)
	return cameraCmd
}

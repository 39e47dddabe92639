package main

import (
	"github.com/spf13/cobra"

	"sam/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var (
		logLevel    string
		development bool
		startCamera bool
	)
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the sam daemon in the foreground",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				StartCamera: startCamera,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	cmd.Flags().BoolVar(&startCamera, "camera", false, "Start the camera once the daemon is up")
	return cmd
}

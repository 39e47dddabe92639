package main

import (
	"github.com/spf13/cobra"

	"sam/internal/ipc"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "SF2 workbook actions",
	}

	reportCmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Write attendance into the SF2 workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReportSync()
				return reportResponse(cmd, resp, err)
			})
		},
	})
	reportCmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Sync the SF2 workbook and open it in the desktop viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReportOpen()
				return reportResponse(cmd, resp, err)
			})
		},
	})
	return reportCmd
}

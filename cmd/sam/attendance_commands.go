package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sam/internal/api"
	"sam/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan NAME",
		Short: "Record attendance for a student by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ManualEntry(name)
				return reportResponse(cmd, resp, err)
			})
		},
	}
}

func newTodayCommand(ctx *commandContext) *cobra.Command {
	var (
		date   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "today",
		Short: "List attendance recorded today (or on --date)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if strings.TrimSpace(date) != "" {
					records, err := client.Attendance(date)
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, records)
					}
					printRecords(cmd, date, records)
					return nil
				}

				today, err := client.Today()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, today)
				}
				printRecords(cmd, today.Date, today.Records)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date to list, in the configured date format")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit records as JSON")
	return cmd
}

func printRecords(cmd *cobra.Command, date string, records []api.Record) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No attendance recorded for %s\n", date)
		return
	}
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		rows = append(rows, []string{strconv.Itoa(i + 1), rec.Name, rec.Time})
	}
	fmt.Fprintf(out, "Attendance for %s (%d)\n", date, len(records))
	fmt.Fprint(out, renderTable([]string{"#", "Name", "Time"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
}

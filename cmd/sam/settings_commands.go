package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"sam/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change user settings",
	}

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print every setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				values, err := client.Settings()
				if err != nil {
					return err
				}
				if showJSON {
					return writeJSON(cmd, values)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, settingsRows(values), nil))
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Emit settings as JSON")

	setCmd := &cobra.Command{
		Use:   "set KEY VALUE [KEY VALUE...]",
		Short: "Change one or more settings",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected KEY VALUE pairs, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if len(args) == 2 {
					resp, err := client.SetSetting(args[0], parseSettingValue(args[1]))
					return reportResponse(cmd, resp, err)
				}
				values := make(map[string]any, len(args)/2)
				for i := 0; i < len(args); i += 2 {
					values[args[i]] = parseSettingValue(args[i+1])
				}
				resp, err := client.UpdateSettings(values)
				return reportResponse(cmd, resp, err)
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the factory settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ResetSettings()
				return reportResponse(cmd, resp, err)
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [DIR]",
		Short: "Write a timestamped settings backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ExportSettings(dir)
				return reportResponse(cmd, resp, err)
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load settings from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ImportSettings(args[0])
				return reportResponse(cmd, resp, err)
			})
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd, resetCmd, exportCmd, importCmd)
	return settingsCmd
}

// parseSettingValue reads JSON literals (numbers, booleans, quoted strings)
// and falls back to the raw text.
func parseSettingValue(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		switch value.(type) {
		case float64, bool, string:
			return value
		}
	}
	return raw
}

func settingsRows(values map[string]any) [][]string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strings.TrimSpace(fmt.Sprint(values[key]))})
	}
	return rows
}

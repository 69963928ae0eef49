package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// serviceRow mirrors supervisor.ServiceStatus's JSON shape, decoded
// client-side to keep this command from importing the supervisor
// package's process-management internals.
type serviceRow struct {
	Name       string  `json:"name"`
	Phase      string  `json:"state"`
	PID        int     `json:"pid,omitempty"`
	Port       int     `json:"port,omitempty"`
	Subdomain  string  `json:"subdomain,omitempty"`
	UptimeSecs float64 `json:"uptime_secs,omitempty"`
	Diagnostic string  `json:"diagnostic,omitempty"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of every declared service on a running a3s up daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			env, err := apiCall(cmd.Context(), cfg, http.MethodGet, "/api/status")
			if err != nil {
				return withExitCode(2, err)
			}
			var rows []serviceRow
			if err := json.Unmarshal(env.Data, &rows); err != nil {
				return withExitCode(2, fmt.Errorf("decoding status: %w", err))
			}
			printStatusTable(cmd, rows)
			return nil
		},
	}
}

func printStatusTable(cmd *cobra.Command, rows []serviceRow) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tSUBDOMAIN\tPORT\tPID\tDIAGNOSTIC")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", row.Name, row.Phase, row.Subdomain, row.Port, row.PID, row.Diagnostic)
	}
	tw.Flush()
}

package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newLogsCommand() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Stream log lines from a running a3s up daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := "/api/logs"
			if service != "" {
				path += "?service=" + service
			}
			out := cmd.OutOrStdout()
			err = streamLines(cmd.Context(), cfg, path, func(data string) {
				var line struct {
					Service string `json:"service"`
					Line    string `json:"line"`
				}
				if err := json.Unmarshal([]byte(data), &line); err != nil {
					return
				}
				fmt.Fprintf(out, "%s | %s\n", line.Service, line.Line)
			})
			if err != nil {
				return withExitCode(2, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "only stream lines from this service (default: every service)")
	return cmd
}

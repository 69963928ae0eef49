package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <name>",
		Short: "Restart one declared service on a running a3s up daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, err := apiCall(cmd.Context(), cfg, http.MethodPost, "/api/restart/"+name); err != nil {
				return withExitCode(2, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restarting %s\n", name)
			return nil
		},
	}
}

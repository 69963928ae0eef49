package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newDownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down [names...]",
		Short: "Stop declared services on a running a3s up daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = cfg.Names()
			}
			ctx := cmd.Context()
			for _, name := range names {
				if _, err := apiCall(ctx, cfg, http.MethodPost, "/api/stop/"+name); err != nil {
					return withExitCode(2, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", name)
			}
			return nil
		},
	}
}

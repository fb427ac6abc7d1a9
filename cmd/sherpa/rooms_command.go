package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func newRoomsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List active notification rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Rooms()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Rooms) == 0 {
					fmt.Fprintln(stdout, "No active rooms")
					return nil
				}
				fmt.Fprint(stdout, renderRoomsTable(resp.Rooms))
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}
}

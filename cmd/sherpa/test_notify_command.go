package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification(userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Test notification delivered to %d connection(s)\n", resp.Delivered)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Target user id (broadcast when omitted)")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func newPopupCommand(ctx *commandContext) *cobra.Command {
	var header string
	var notificationType string
	var userID string

	cmd := &cobra.Command{
		Use:   "popup <message>",
		Short: "Send a popup to one room or broadcast to all",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Popup(ipc.PopupRequest{
					Message: args[0],
					Header:  header,
					Type:    notificationType,
					UserID:  userID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Delivered to %d connection(s)\n", resp.Delivered)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&header, "header", "", "Notification header")
	cmd.Flags().StringVar(&notificationType, "type", "", "Notification type (defaults to popup)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Target user id (broadcast when omitted)")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func newAnnounceCommand(ctx *commandContext) *cobra.Command {
	var lessonID int64
	var stepOrder int
	var header string
	var body string

	cmd := &cobra.Command{
		Use:   "announce <user-id>",
		Short: "Publish a step-start popup to a user's room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Announce(ipc.AnnounceRequest{
					UserID:    args[0],
					LessonID:  lessonID,
					StepOrder: stepOrder,
					Header:    header,
					Body:      body,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Announced %q to %s\n", resp.Header, args[0])
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&lessonID, "lesson", 0, "Lesson id")
	cmd.Flags().IntVar(&stepOrder, "step", 0, "Step order")
	cmd.Flags().StringVar(&header, "header", "", "Explicit notification header")
	cmd.Flags().StringVar(&body, "body", "", "Explicit notification body")
	return cmd
}

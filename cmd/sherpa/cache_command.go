package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the in-memory lesson cache",
	}

	var all bool
	invalidateCmd := &cobra.Command{
		Use:   "invalidate [lesson-id]",
		Short: "Drop cached lesson steps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var lessonID int64
			if len(args) == 1 {
				parsed, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid lesson id %q", args[0])
				}
				lessonID = parsed
			} else if !all {
				return fmt.Errorf("provide a lesson id or --all")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheInvalidate(lessonID, all)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entr%s\n",
					resp.Removed, pluralY(resp.Removed))
				return nil
			})
		},
	}
	invalidateCmd.Flags().BoolVar(&all, "all", false, "Drop every cached lesson")

	cacheCmd.AddCommand(invalidateCmd)
	return cacheCmd
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

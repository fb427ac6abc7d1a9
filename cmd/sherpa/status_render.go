package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func runStatus(ctx *commandContext, cmd *cobra.Command) error {
	return ctx.withClient(func(client *ipc.Client) error {
		status, err := client.Status()
		if err != nil {
			return err
		}
		stdout := cmd.OutOrStdout()
		colorize := shouldColorize(stdout)
		for _, line := range renderStatusLines(status, colorize) {
			fmt.Fprintln(stdout, line)
		}
		if len(status.Rooms) > 0 {
			fmt.Fprintln(stdout)
			fmt.Fprint(stdout, renderRoomsTable(status.Rooms))
			fmt.Fprintln(stdout)
		}
		return nil
	})
}

func renderStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	running := colorizeState(yesNo(status.Running), status.Running, colorize)
	judge := colorizeState(yesNo(status.JudgeConfigured), status.JudgeConfigured, colorize)
	return []string{
		"Running:          " + running,
		"PID:              " + strconv.Itoa(status.PID),
		"API bind:         " + status.APIBind,
		"Database:         " + status.DatabasePath,
		"Lock file:        " + status.LockPath,
		"Judge configured: " + judge,
		fmt.Sprintf("Cache:            %d lessons (%d hits, %d misses)",
			status.CacheLessons, status.CacheHits, status.CacheMisses),
		fmt.Sprintf("Rooms:            %d", len(status.Rooms)),
	}
}

func renderRoomsTable(rooms []ipc.RoomInfo) string {
	rows := make([][]string, 0, len(rooms))
	for _, room := range rooms {
		rows = append(rows, []string{room.Name, strconv.Itoa(room.Members)})
	}
	return renderTable([]string{"Room", "Members"}, rows, []columnAlignment{alignLeft, alignRight})
}

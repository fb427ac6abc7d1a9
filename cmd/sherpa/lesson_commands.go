package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"sherpa/internal/ipc"
)

func newLessonCommand(ctx *commandContext) *cobra.Command {
	lessonCmd := &cobra.Command{
		Use:   "lesson",
		Short: "Inspect and import lessons",
	}
	lessonCmd.AddCommand(newLessonListCommand(ctx))
	lessonCmd.AddCommand(newLessonShowCommand(ctx))
	lessonCmd.AddCommand(newLessonImportCommand(ctx))
	return lessonCmd
}

func newLessonListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored lessons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LessonList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Lessons) == 0 {
					fmt.Fprintln(stdout, "No lessons stored")
					return nil
				}
				rows := make([][]string, 0, len(resp.Lessons))
				for _, lesson := range resp.Lessons {
					rows = append(rows, []string{
						strconv.FormatInt(lesson.ID, 10),
						strconv.Itoa(lesson.LessonOrder),
						lesson.Title,
						lesson.CreatedAt,
					})
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"ID", "Order", "Title", "Created"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}
}

func newLessonShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <lesson-id>",
		Short: "Show a lesson with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lesson id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LessonShow(id)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Lesson %d (order %d): %s\n\n",
					resp.Lesson.ID, resp.Lesson.LessonOrder, resp.Lesson.Title)
				if len(resp.Steps) == 0 {
					fmt.Fprintln(stdout, "No steps")
					return nil
				}
				rows := make([][]string, 0, len(resp.Steps))
				for _, step := range resp.Steps {
					rows = append(rows, []string{
						strconv.Itoa(step.StepOrder),
						step.Name,
						step.FinishCriteria,
					})
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"Step", "Name", "Finish Criteria"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}
}

func newLessonImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a lesson from a JSON file",
		Long: `Import a lesson from a JSON file shaped like:

  {"lesson_order": 1, "title": "Terminal Basics", "steps": [
    {"name": "Open a terminal", "description": "...", "finish_criteria": "..."}]}

Steps without an explicit step_order are numbered in file order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read lesson file: %w", err)
			}
			var req ipc.LessonImportRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse lesson file: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LessonImport(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported lesson %d: %s\n",
					resp.Lesson.ID, resp.Lesson.Title)
				return nil
			})
		},
	}
}

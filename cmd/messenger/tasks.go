package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/scheduler"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect scheduled tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks from the task file",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := repository.NewTaskRepository(cfg.Data.TasksFile).LoadAll()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tCRON\tSTATUS\tNEXT RUN\tLAST ERROR")
		for _, t := range tasks {
			next := "-"
			if t.NextRun != nil {
				next = t.NextRun.Local().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Type, t.CronExpression, t.Status, next, t.LastError)
		}
		return w.Flush()
	},
}

var tasksSchedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Show common cron expressions",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, s := range scheduler.CommonSchedules() {
			fmt.Fprintf(w, "%s\t%s\n", s.Label, s.Expression)
		}
		return w.Flush()
	},
}

func init() {
	tasksCmd.AddCommand(tasksListCmd, tasksSchedulesCmd)
}

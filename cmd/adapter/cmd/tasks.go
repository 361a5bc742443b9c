package cmd

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/adapter-skeleton/internal/tasks"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the built-in tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printTasks(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func printTasks(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Description")
	for _, b := range tasks.Builtins() {
		table.Append(b.ID, b.Description)
	}
	table.Render()
}

// Package schedule holds the schedule commands.
package schedule

import (
	"github.com/spf13/cobra"
)

// Cmd is the schedule command group
var Cmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"schedules", "s"},
	Short:   "Manage schedules",
	Long:    `Create, edit, list, import and export calendar schedules.`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(editCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(importCmd)
	Cmd.AddCommand(exportCmd)
}

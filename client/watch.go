package main

import (
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/client/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream task state-change events as they happen",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ipcClient.Subscribe(); err != nil {
			return err
		}

		spinner := ui.NewSpinner("Watching for task state changes")
		spinner.UpdateMessage("Watching for task state changes")

		for {
			event, err := ipcClient.Next()
			if err != nil {
				spinner.Fail("disconnected from myqueued")
				return err
			}

			spinner.Transition(event.TaskID, event.OldStatus, event.NewStatus, event.Timestamp)
			spinner = ui.NewSpinner("Watching for task state changes")
		}
	},
}

package main

import (
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/internal/ipc"
	"github.com/myqueue/myqueue/internal/task"
)

var cancelCmd = &cobra.Command{
	Use:     "cancel ID...",
	Aliases: []string{"rm", "delete"},
	Short:   "Cancel running tasks or remove finished ones",
	Args:    cobra.ArbitraryArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		rng := lo.Must(cmd.Flags().GetString("range"))
		all := lo.Must(cmd.Flags().GetBool("all"))

		var ids []uint64
		if all {
			var resp ipc.DeleteAllResponse
			if err := ipcClient.Call(ipc.MsgDeleteAll, struct{}{}, ipc.MsgOk, &resp); err != nil {
				return err
			}
			reportDeletedAll(cmd, resp.Counts)
			return nil
		}

		if rng != "" {
			ids = append(ids, task.ParseIDRange(rng)...)
		}
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				cmd.PrintErrln(color.HiRedString("invalid task id '%s'", arg))
				continue
			}
			ids = append(ids, id)
		}

		if len(ids) == 0 {
			return nil
		}

		var resp ipc.DeleteResponse
		if err := ipcClient.Call(ipc.MsgDelete, ipc.DeleteRequest{TaskIDs: ids}, ipc.MsgOk, &resp); err != nil {
			return err
		}
		reportDeleted(cmd, resp)
		return nil
	},
}

func init() {
	cancelCmd.Flags().String("range", "", "a range of task ids, e.g. 10-20")
	cancelCmd.Flags().Bool("all", false, "cancel/remove every task")
}

func parseID(s string) (uint64, error) {
	ids := task.ParseIDRange(s)
	if len(ids) != 1 {
		return 0, errInvalidID
	}
	return ids[0], nil
}

var errInvalidID = &idError{}

type idError struct{}

func (*idError) Error() string { return "not a valid task id" }

func reportDeleted(cmd *cobra.Command, resp ipc.DeleteResponse) {
	for _, id := range resp.Deleted {
		cmd.PrintErrln(color.HiGreenString("cancelled task %d", id))
	}
	for _, id := range resp.Missing {
		cmd.PrintErrln(color.HiYellowString("task %d not found", id))
	}
}

func reportDeletedAll(cmd *cobra.Command, c ipc.DeleteAllCounts) {
	cmd.PrintErrln(color.HiGreenString("removed %d task(s): %d running terminated, %d pending deleted, %d terminal deleted",
		c.Total, c.RunningTerminated, c.PendingDeleted, c.TerminalDeleted))
}

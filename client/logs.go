package main

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/internal/ipc"
)

var logsCmd = &cobra.Command{
	Use:     "logs ID",
	Aliases: []string{"tail"},
	Short:   "Show a task's log output",
	Args:    cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}

		req := ipc.LogRequest{ID: id, Tail: lo.Must(cmd.Flags().GetInt("tail"))}
		var resp ipc.LogResponse
		if err := ipcClient.Call(ipc.MsgLog, req, ipc.MsgOk, &resp); err != nil {
			return err
		}

		if lo.Must(cmd.Flags().GetBool("path")) {
			cmd.PrintErrln(color.HiBlackString(resp.Path))
		}
		cmd.Print(resp.Content)
		return nil
	},
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 0, "number of lines to show from the end of the log (0 = entire log)")
	logsCmd.Flags().Bool("path", false, "print the log file's path before its content")
}

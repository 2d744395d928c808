package main

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/client/ui"
	"github.com/myqueue/myqueue/internal/ipc"
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}

		var info ipc.TaskInfo
		if err := ipcClient.Call(ipc.MsgInfo, ipc.InfoRequest{ID: id}, ipc.MsgOk, &info); err != nil {
			return err
		}

		cmd.Printf("%-12s %d\n", "Task:", info.ID)
		cmd.Printf("%-12s %s\n", "Status:", ui.StatusColor(info.Status))
		cmd.Printf("%-12s %s\n", "Script:", info.ScriptPath)
		cmd.Printf("%-12s %s\n", "Workdir:", info.Workdir)
		cmd.Printf("%-12s %s\n", "CPUs:", color.HiCyanString("%v", info.AllocatedCPUs))
		cmd.Printf("%-12s %s\n", "GPUs:", color.HiCyanString("%v", info.AllocatedGPUs))
		if info.PID != 0 {
			cmd.Printf("%-12s %d\n", "PID:", info.PID)
		}
		cmd.Printf("%-12s %s\n", "Submitted:", info.SubmitTime)
		if info.StartTime != nil {
			cmd.Printf("%-12s %s\n", "Started:", *info.StartTime)
		}
		if info.EndTime != nil {
			cmd.Printf("%-12s %s\n", "Ended:", *info.EndTime)
			cmd.Printf("%-12s %d\n", "Exit code:", info.ExitCode)
		}

		return nil
	},
}

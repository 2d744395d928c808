package main

import (
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/client/ui"
	"github.com/myqueue/myqueue/internal/ipc"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List tasks",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		all := lo.Must(cmd.Flags().GetBool("all"))

		var resp ipc.QueryResponse
		req := ipc.QueryRequest{IncludeTerminal: all}
		if err := ipcClient.Call(ipc.MsgQuery, req, ipc.MsgOk, &resp); err != nil {
			return err
		}

		cmd.Printf("%-6s %-10s %-4s %-4s %-8s %s\n", "ID", "STATUS", "CPU", "GPU", "PID", "WORKDIR")
		for _, t := range resp.Tasks {
			cmd.Printf("%-6d %-10s %-4d %-4d %-8d %s\n",
				t.ID, ui.StatusColor(t.Status), len(t.AllocatedCPUs), len(t.AllocatedGPUs), t.PID, t.Workdir)
		}
		return nil
	},
}

func init() {
	psCmd.Flags().BoolP("all", "a", false, "include completed, failed, and cancelled tasks")
}

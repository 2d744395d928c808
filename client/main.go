package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/internal/config"
	"github.com/myqueue/myqueue/internal/ipc"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

var ipcClient *ipc.Client

var myqueueCmd = &cobra.Command{
	Use:   "myqueue",
	Short: "myqueue is a single-node job queue for GPU/CPU workloads.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		switch cmd.Name() {
		case "completion", "bash", "zsh", "version":
			return nil
		}

		socket := lo.Must(cmd.Flags().GetString("socket"))
		ipcClient, err = ipc.Dial(socket)
		if err != nil {
			return fmt.Errorf("failed to connect to myqueued at %s: %w", socket, err)
		}
		return nil
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ipcClient != nil {
			return ipcClient.Close()
		}
		return nil
	},
}

func init() {
	myqueueCmd.AddCommand(cancelCmd)
	myqueueCmd.AddCommand(completionCmd)
	myqueueCmd.AddCommand(logsCmd)
	myqueueCmd.AddCommand(psCmd)
	myqueueCmd.AddCommand(runCmd)
	myqueueCmd.AddCommand(showCmd)
	myqueueCmd.AddCommand(topCmd)
	myqueueCmd.AddCommand(versionCmd)
	myqueueCmd.AddCommand(watchCmd)

	myqueueCmd.PersistentFlags().String("socket", config.DefaultSocketPath(), "path to the myqueued control socket")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	myqueueCmd.SetOut(os.Stdout)
	if err := myqueueCmd.ExecuteContext(ctx); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}

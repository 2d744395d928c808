package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/client/jobfile"
	"github.com/myqueue/myqueue/client/ui"
	"github.com/myqueue/myqueue/internal/ipc"
)

var runCmd = &cobra.Command{
	Use:   "run SCRIPT [WORKDIR]",
	Short: "Submits a script for execution",
	Args:  cobra.RangeArgs(1, 2),

	RunE: func(cmd *cobra.Command, args []string) error {
		batch := lo.Must(cmd.Flags().GetString("batch"))
		workdirsFile := lo.Must(cmd.Flags().GetString("workdirs-file"))

		switch {
		case batch != "":
			return runBatch(cmd, args[0], batch)
		case workdirsFile != "":
			return runWorkdirsFile(cmd, args[0], workdirsFile)
		default:
			if len(args) < 2 {
				return fmt.Errorf("WORKDIR is required unless --batch or --workdirs-file is given")
			}
			return runOne(cmd, args[0], args[1])
		}
	},
}

func init() {
	runCmd.Flags().Int("ncpu", 1, "number of CPUs to reserve")
	runCmd.Flags().Int("ngpu", 0, "number of GPUs to reserve")
	runCmd.Flags().IntSlice("cpus", nil, "specific CPU ids to reserve (overrides --ncpu)")
	runCmd.Flags().IntSlice("gpus", nil, "specific GPU ids to reserve (overrides --ngpu)")
	runCmd.Flags().String("log", "", "per-task log file, relative to WORKDIR")
	runCmd.Flags().Bool("wait", false, "wait for the task to reach a terminal state")
	runCmd.Flags().String("batch", "", "YAML batch manifest listing many workdirs (see jobfile format)")
	runCmd.Flags().String("workdirs-file", "", "flat file with one workdir per line (# comments allowed)")
}

func runOne(cmd *cobra.Command, script, workdir string) error {
	req := ipc.SubmitRequest{
		ScriptPath:   script,
		Workdir:      workdir,
		NCPU:         lo.Must(cmd.Flags().GetInt("ncpu")),
		NGPU:         lo.Must(cmd.Flags().GetInt("ngpu")),
		SpecificCPUs: lo.Must(cmd.Flags().GetIntSlice("cpus")),
		SpecificGPUs: lo.Must(cmd.Flags().GetIntSlice("gpus")),
		LogFile:      lo.Must(cmd.Flags().GetString("log")),
	}
	return submitAndReport(cmd, req)
}

func runBatch(cmd *cobra.Command, script, manifestPath string) error {
	manifest, err := jobfile.Read(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read batch manifest '%s': %w", manifestPath, err)
	}
	if manifest.Script == "" {
		manifest.Script = script
	}

	for _, entry := range manifest.Workdirs {
		req := ipc.SubmitRequest{
			ScriptPath:   manifest.Script,
			Workdir:      entry.Workdir,
			NCPU:         lo.Ternary(entry.NCPU > 0, entry.NCPU, manifest.NCPU),
			NGPU:         lo.Ternary(entry.NGPU > 0, entry.NGPU, manifest.NGPU),
			SpecificCPUs: entry.SpecificCPUs,
			SpecificGPUs: entry.SpecificGPUs,
			LogFile:      entry.LogFile,
		}
		if err := submitAndReport(cmd, req); err != nil {
			cmd.PrintErrln(color.HiRedString("failed to submit '%s': %s", entry.Workdir, err))
		}
	}
	return nil
}

func runWorkdirsFile(cmd *cobra.Command, script, path string) error {
	workdirs, err := jobfile.ReadWorkdirsFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workdirs file '%s': %w", path, err)
	}

	ncpu := lo.Must(cmd.Flags().GetInt("ncpu"))
	ngpu := lo.Must(cmd.Flags().GetInt("ngpu"))
	for _, workdir := range workdirs {
		req := ipc.SubmitRequest{ScriptPath: script, Workdir: workdir, NCPU: ncpu, NGPU: ngpu}
		if err := submitAndReport(cmd, req); err != nil {
			cmd.PrintErrln(color.HiRedString("failed to submit '%s': %s", workdir, err))
		}
	}
	return nil
}

func submitAndReport(cmd *cobra.Command, req ipc.SubmitRequest) error {
	spinner := ui.NewSpinner(fmt.Sprintf("Submitting %s", req.Workdir))

	var resp ipc.SubmitResponse
	if err := ipcClient.Call(ipc.MsgSubmit, req, ipc.MsgOk, &resp); err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success(fmt.Sprintf("Submitted task %d (%s)", resp.ID, req.Workdir))

	if lo.Must(cmd.Flags().GetBool("wait")) {
		return waitForTerminal(cmd, resp.ID)
	}
	return nil
}

func waitForTerminal(cmd *cobra.Command, id uint64) error {
	spinner := ui.NewSpinner(fmt.Sprintf("Waiting for task %d", id))
	defer func() { spinner.UpdateMessage("") }()

	for {
		var info ipc.TaskInfo
		if err := ipcClient.Call(ipc.MsgInfo, ipc.InfoRequest{ID: id}, ipc.MsgOk, &info); err != nil {
			spinner.Fail()
			return err
		}

		switch info.Status {
		case "completed":
			spinner.Success(fmt.Sprintf("Task %d completed (exit code %d)", id, info.ExitCode))
			return nil
		case "failed":
			spinner.Fail(fmt.Sprintf("Task %d failed", id))
			return nil
		case "cancelled":
			spinner.Warn(fmt.Sprintf("Task %d was cancelled", id))
			return nil
		}

		spinner.UpdateMessage(fmt.Sprintf("Task %d is %s", id, info.Status))
		time.Sleep(500 * time.Millisecond)
	}
}

package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/myqueue/myqueue/internal/ipc"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live dashboard of CPU/GPU occupancy and the queue",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		interval := time.Second

		app := tview.NewApplication()

		header := tview.NewTextView().
			SetDynamicColors(true).
			SetTextAlign(tview.AlignLeft)
		header.SetBorder(true).SetTitle(" myqueue ")

		tasksTable := tview.NewTable().
			SetFixed(1, 0).
			SetSelectable(true, false)
		tasksTable.SetBorder(true).SetTitle(" Tasks ")

		layout := tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(header, 3, 0, false).
			AddItem(tasksTable, 0, 1, false)

		app.SetFocus(tasksTable)
		app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if event.Rune() == 'q' {
				app.Stop()
				return nil
			}
			return event
		})

		var lastTasks []ipc.TaskInfo
		var lastErr error

		render := func() {
			header.Clear()
			if lastErr != nil {
				fmt.Fprintf(header, " [red]error refreshing status: %s[white]", lastErr)
			} else {
				running, pending := 0, 0
				usedCPUs, usedGPUs := 0, 0
				for _, t := range lastTasks {
					switch t.Status {
					case "running":
						running++
						usedCPUs += len(t.AllocatedCPUs)
						usedGPUs += len(t.AllocatedGPUs)
					case "pending":
						pending++
					}
				}
				fmt.Fprintf(header, " [yellow]myqueue[white]  |  Running: [green]%d[white]  Pending: [yellow]%d[white]  |  CPUs in use: [aqua]%d[white]  GPUs in use: [aqua]%d[white]",
					running, pending, usedCPUs, usedGPUs)
			}

			tasksTable.Clear()
			for col, title := range []string{"ID", "STATUS", "CPU", "GPU", "PID", "WORKDIR"} {
				tasksTable.SetCell(0, col, tview.NewTableCell(title).
					SetTextColor(tcell.ColorYellow).
					SetSelectable(false).
					SetExpansion(1))
			}

			tasks := make([]ipc.TaskInfo, len(lastTasks))
			copy(tasks, lastTasks)
			sort.Slice(tasks, func(i, j int) bool {
				oi, oj := taskStatusOrder(tasks[i].Status), taskStatusOrder(tasks[j].Status)
				if oi != oj {
					return oi < oj
				}
				return tasks[i].ID < tasks[j].ID
			})

			for row, t := range tasks {
				tasksTable.SetCell(row+1, 0, tview.NewTableCell(fmt.Sprintf("%d", t.ID)).SetTextColor(tcell.ColorWhite))
				tasksTable.SetCell(row+1, 1, tview.NewTableCell(t.Status).SetTextColor(taskStatusColor(t.Status)))
				tasksTable.SetCell(row+1, 2, tview.NewTableCell(fmt.Sprintf("%d", len(t.AllocatedCPUs))).SetTextColor(tcell.ColorWhite))
				tasksTable.SetCell(row+1, 3, tview.NewTableCell(fmt.Sprintf("%d", len(t.AllocatedGPUs))).SetTextColor(tcell.ColorWhite))
				tasksTable.SetCell(row+1, 4, tview.NewTableCell(fmt.Sprintf("%d", t.PID)).SetTextColor(tcell.ColorWhite))
				tasksTable.SetCell(row+1, 5, tview.NewTableCell(t.Workdir).SetTextColor(tcell.ColorAqua).SetExpansion(3))
			}
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			refresh := func() {
				var resp ipc.QueryResponse
				err := ipcClient.Call(ipc.MsgQuery, ipc.QueryRequest{}, ipc.MsgOk, &resp)
				app.QueueUpdateDraw(func() {
					lastErr = err
					if err == nil {
						lastTasks = resp.Tasks
					}
					render()
				})
			}

			refresh()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					refresh()
				}
			}
		}()

		err := app.SetRoot(layout, true).Run()
		close(done)
		return err
	},
}

func taskStatusOrder(status string) int {
	switch status {
	case "running":
		return 0
	case "pending":
		return 1
	default:
		return 2
	}
}

func taskStatusColor(status string) tcell.Color {
	switch status {
	case "running":
		return tcell.ColorGreen
	case "pending":
		return tcell.ColorYellow
	case "failed":
		return tcell.ColorRed
	case "cancelled":
		return tcell.ColorGray
	default:
		return tcell.ColorWhite
	}
}

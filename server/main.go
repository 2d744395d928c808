package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/myqueue/myqueue/internal/archive"
	"github.com/myqueue/myqueue/internal/config"
	"github.com/myqueue/myqueue/internal/executor"
	"github.com/myqueue/myqueue/internal/ipc"
	"github.com/myqueue/myqueue/internal/resource"
	"github.com/myqueue/myqueue/internal/scheduler"
	"github.com/myqueue/myqueue/internal/task"
	"github.com/myqueue/myqueue/server/flags"
	"github.com/myqueue/myqueue/server/log"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

// Global context for shutdown cascading. When cancel() is called (from the
// signal handler), every goroutine watching ctx.Done() begins its shutdown
// sequence.
var ctx, cancel = context.WithCancel(context.Background())

// wg tracks the scheduler and the IPC server; main() blocks on wg.Wait()
// and only exits once both have finished.
var wg sync.WaitGroup

func main() {
	if err := log.Init(); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, err))
		os.Exit(1)
	}
	log.Info("myqueued starting up", "version", version, "commit", commit)

	cfg := loadConfig()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}

	store := task.NewStore(cfg.TasksPath())
	store.Load()

	topology := resource.NewTopology(cfg.TotalCPUs, cfg.TotalGPUs, cfg.AffinityGroups)
	gpuProbe := resource.NewNvidiaSMIProbe(cfg.GPUThresholdMB, cfg.TotalGPUs)
	cpuProbe := resource.NewProcStatProbe()
	ledger := resource.NewLedger(topology, gpuProbe, cpuProbe, cfg.TotalCPUs, cfg.TotalGPUs, cfg.CPUThresholdPercent, cfg.CPUCheckWindowMS, cfg.CPUCheckIntervalMS)
	ledger.SetExcluded(cfg.ExcludedCPUs, cfg.ExcludedGPUs)

	exec := executor.New(cfg.LogDir)

	sched := scheduler.New(store, ledger, exec,
		time.Duration(cfg.DispatchIntervalMS)*time.Millisecond, time.Duration(cfg.SuperviseIntervalMS)*time.Millisecond)
	sched.SetArchiver(&archive.Archiver{Enabled: true})

	subs := newSubscribers()
	sched.OnStateChange(subs.broadcast)

	srv, err := ipc.Listen(cfg.SocketPath, handler(store, sched))
	if err != nil {
		log.Error("failed to listen on socket", "path", cfg.SocketPath, "error", err)
		os.Exit(1)
	}
	srv.OnSubscribe(subs.handleConn)

	setupInterrupts()

	sched.Start(ctx)
	wg.Add(1)
	go func() {
		<-ctx.Done()
		sched.Stop()
		wg.Done()
	}()

	wg.Add(1)
	go func() {
		go func() {
			<-ctx.Done()
			srv.Close()
		}()

		log.Info("server listening", "socket", cfg.SocketPath)
		if err := srv.Serve(); err != nil {
			log.Error("ipc server stopped with error", "error", err)
		}
		wg.Done()
	}()

	wg.Wait()
	log.Info("shutdown completed, bye!")
}

func loadConfig() config.Config {
	cfg := config.Default()
	if v := viper.GetString(flags.SocketPath); v != "" {
		cfg.SocketPath = v
	}
	if v := viper.GetString(flags.DataDir); v != "" {
		cfg.DataDir = v
	}
	cfg.Load() // overlay persisted config.json, if any, onto defaults/flags
	if v := viper.GetString(flags.LogDir); v != "" {
		cfg.LogDir = v
	} else if cfg.LogDir == "" {
		cfg.LogDir = cfg.DataDir + "/logs"
	}

	cfg.GPUThresholdMB = viper.GetUint64(flags.GPUThresholdMB)
	cfg.TotalGPUs = viper.GetInt(flags.TotalGPUs)
	cfg.CPUThresholdPercent = viper.GetFloat64(flags.CPUThresholdPercent)
	cfg.CPUCheckWindowMS = viper.GetInt(flags.CPUCheckWindowMS)
	cfg.CPUCheckIntervalMS = viper.GetInt(flags.CPUCheckIntervalMS)
	cfg.TotalCPUs = viper.GetInt(flags.TotalCPUs)
	cfg.AffinityGroups = viper.GetInt(flags.AffinityGroups)
	cfg.DispatchIntervalMS = viper.GetInt(flags.DispatchIntervalMS)
	cfg.SuperviseIntervalMS = viper.GetInt(flags.SuperviseIntervalMS)
	cfg.ExcludedCPUs = viper.GetIntSlice(flags.ExcludedCPUs)
	cfg.ExcludedGPUs = viper.GetIntSlice(flags.ExcludedGPUs)

	if err := cfg.Save(); err != nil {
		log.Warn("failed to persist config", "error", err)
	}
	return cfg
}

// setupInterrupts handles Ctrl+C (SIGINT) with a double-tap pattern: the
// first signal cascades a graceful shutdown through ctx.Done(); the second
// forces immediate exit in case something hangs.
func setupInterrupts() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	go func() {
		<-sig
		log.Info("shutdown signal received, attempting graceful shutdown")
		cancel()
		<-sig
		log.Warn("second shutdown signal received, forcing exit")
		os.Exit(1)
	}()
}

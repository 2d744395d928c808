package flags

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	LogFormat = "log-format"
	LogLevel  = "log-level"
	LogSource = "log-source"

	SocketPath = "socket-path"
	DataDir    = "data-dir"
	LogDir     = "log-dir"

	GPUThresholdMB      = "gpu-threshold-mb"
	TotalGPUs           = "total-gpus"
	CPUThresholdPercent = "cpu-threshold-percent"
	CPUCheckWindowMS    = "cpu-check-window-ms"
	CPUCheckIntervalMS  = "cpu-check-interval-ms"
	TotalCPUs           = "total-cpus"
	AffinityGroups      = "affinity-groups"
	DispatchIntervalMS  = "dispatch-interval-ms"
	SuperviseIntervalMS = "supervise-interval-ms"
	ExcludedCPUs        = "excluded-cpus"
	ExcludedGPUs        = "excluded-gpus"
)

func init() {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	flags.String(LogFormat, "json", "log format (json, text)")
	flags.String(LogLevel, "INFO", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")

	flags.String(SocketPath, "", "unix socket path (default /tmp/myqueue_<user>.sock)")
	flags.String(DataDir, "", "data directory (default ~/.myqueue/<hostname>)")
	flags.String(LogDir, "", "server-wide job log directory (default <data-dir>/logs)")

	flags.Uint64(GPUThresholdMB, 2000, "GPU memory used (MB) above which a device is busy")
	flags.Int(TotalGPUs, 8, "number of GPU devices")
	flags.Float64(CPUThresholdPercent, 40, "CPU utilization percent at or above which a core is busy")
	flags.Int(CPUCheckWindowMS, 3000, "sustained-idle window, in milliseconds")
	flags.Int(CPUCheckIntervalMS, 500, "sustained-idle sampling interval, in milliseconds")
	flags.Int(TotalCPUs, 64, "number of CPU cores")
	flags.Int(AffinityGroups, 2, "number of CPU<->GPU affinity groups")
	flags.Int(DispatchIntervalMS, 1000, "dispatch loop tick interval, in milliseconds")
	flags.Int(SuperviseIntervalMS, 500, "supervise loop tick interval, in milliseconds")
	flags.IntSlice(ExcludedCPUs, nil, "CPU core ids excluded from scheduling")
	flags.IntSlice(ExcludedGPUs, nil, "GPU device ids excluded from scheduling")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	viper.SetEnvPrefix("myqueue")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))
}

// Package config holds every tunable of the scheduling core: resource
// thresholds, CPU/GPU topology, intervals, and filesystem paths.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// Config is loaded once at startup from flags/env (see server/flags) and
// persisted to <DataDir>/config.json. The daemon applies every flag/env
// tunable (or its default) after reading that file, so of its contents only
// the socket and log paths carry over to the next start.
type Config struct {
	SocketPath string `json:"socket_path"`
	DataDir    string `json:"data_dir"`
	LogDir     string `json:"log_dir"`

	GPUThresholdMB uint64 `json:"gpu_threshold_mb"`
	TotalGPUs      int    `json:"total_gpus"`

	CPUThresholdPercent float64 `json:"cpu_threshold_percent"`
	CPUCheckWindowMS    int     `json:"cpu_check_window_ms"`
	CPUCheckIntervalMS  int     `json:"cpu_check_interval_ms"`
	TotalCPUs           int     `json:"total_cpus"`
	AffinityGroups      int     `json:"affinity_groups"`

	DispatchIntervalMS  int `json:"dispatch_interval_ms"`
	SuperviseIntervalMS int `json:"supervise_interval_ms"`

	ExcludedCPUs []int `json:"excluded_cpus"`
	ExcludedGPUs []int `json:"excluded_gpus"`
}

// Default returns the out-of-the-box configuration, before any flag/env
// override: 2000 MB GPU threshold, 40% CPU threshold, a 3000ms
// sustained-idle window sampled every 500ms, a 1000ms dispatch tick and a
// 500ms supervise tick, over 64 CPUs / 8 GPUs split into 2 affinity groups.
func Default() Config {
	c := Config{
		GPUThresholdMB:      2000,
		TotalGPUs:           8,
		CPUThresholdPercent: 40,
		CPUCheckWindowMS:    3000,
		CPUCheckIntervalMS:  500,
		TotalCPUs:           64,
		AffinityGroups:      2,
		DispatchIntervalMS:  1000,
		SuperviseIntervalMS: 500,
	}
	c.SocketPath = DefaultSocketPath()
	c.DataDir = DefaultDataDir()
	c.LogDir = filepath.Join(c.DataDir, "logs")
	return c
}

// DefaultSocketPath is /tmp/myqueue_<user>.sock, falling back to "unknown"
// if the current user cannot be determined.
func DefaultSocketPath() string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("myqueue_%s.sock", username))
}

// DefaultDataDir is ~/.myqueue/<hostname>, falling back to
// ./.myqueue/<hostname> if the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return filepath.Join(home, ".myqueue", hostname)
}

// TasksPath is the fixed path of the task store's persisted document.
func (c Config) TasksPath() string {
	return filepath.Join(c.DataDir, "tasks.json")
}

func (c Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// Save persists c to <DataDir>/config.json, creating DataDir if needed.
func (c Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("config: create data dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp := c.configPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return os.Rename(tmp, c.configPath())
}

// Load reads <DataDir>/config.json into c, overwriting every field present
// in the file. A missing or malformed file is not an error: it leaves c
// unchanged, so callers typically call Load against a Default() config.
func (c *Config) Load() {
	data, err := os.ReadFile(c.configPath())
	if err != nil {
		return
	}
	loaded := *c
	if err := json.Unmarshal(data, &loaded); err != nil {
		return
	}
	*c = loaded
}

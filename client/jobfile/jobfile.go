// Package jobfile reads the batch submission manifest accepted by
// `myqueue run --batch`: one script run across many working directories,
// with optional per-entry resource overrides.
package jobfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const ManifestVersion = "1"

// Manifest is the YAML batch submission document.
type Manifest struct {
	Version  string          `yaml:"version"`
	Script   string          `yaml:"script"`
	NCPU     int             `yaml:"ncpu"`
	NGPU     int             `yaml:"ngpu"`
	Workdirs []WorkdirsEntry `yaml:"workdirs"`
}

// WorkdirsEntry is one manifest workdir, either a bare path (UnmarshalYAML
// below handles the scalar form) or a mapping with per-entry overrides.
type WorkdirsEntry struct {
	Workdir      string `yaml:"workdir"`
	NCPU         int    `yaml:"ncpu"`
	NGPU         int    `yaml:"ngpu"`
	SpecificCPUs []int  `yaml:"cpus"`
	SpecificGPUs []int  `yaml:"gpus"`
	LogFile      string `yaml:"log_file"`
}

func (e *WorkdirsEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Workdir)
	}

	type plain WorkdirsEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = WorkdirsEntry(p)
	return nil
}

// Validate checks structural invariants only: a version mismatch is a hard
// failure, and an empty workdir list is rejected. A missing workdir
// directory is not itself a validation error — Read drops it with a
// warning instead, so one bad entry doesn't sink the whole batch.
func (m Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %q (expected %q)", m.Version, ManifestVersion)
	}
	if len(m.Workdirs) == 0 {
		return fmt.Errorf("manifest has no workdirs")
	}
	return nil
}

// Read parses and validates a batch manifest, dropping (with a warning on
// stderr) any workdir entry whose directory does not exist on disk.
func Read(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("unmarshal: %w", err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}

	kept := m.Workdirs[:0]
	for _, entry := range m.Workdirs {
		if _, err := os.Stat(entry.Workdir); err != nil {
			fmt.Fprintf(os.Stderr, "jobfile: skipping workdir %q: %s\n", entry.Workdir, err)
			continue
		}
		kept = append(kept, entry)
	}
	m.Workdirs = kept

	return m, nil
}

// ReadWorkdirsFile parses the flat one-directory-per-line form accepted by
// `myqueue run --workdirs-file`, honoring `#` line comments. Non-existent
// directories are skipped with a warning rather than failing the whole
// batch.
func ReadWorkdirsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var workdirs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := os.Stat(line); err != nil {
			fmt.Fprintf(os.Stderr, "jobfile: skipping workdir %q: %s\n", line, err)
			continue
		}
		workdirs = append(workdirs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return workdirs, nil
}

// Package archive compresses per-task log files once a task has completed,
// a retention aid for long-running queues with thousands
// of historical jobs. It is purely supplemental: it does not change log
// content, only its at-rest representation.
package archive

import (
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/myqueue/myqueue/server/log"
)

// Archiver zstd-compresses log files in place: "logfile" becomes
// "logfile.zst" and the original is removed on success.
type Archiver struct {
	// Enabled gates whether Archive does anything; archival can be turned
	// off for queues that prefer to keep raw logs.
	Enabled bool
}

// Archive compresses logPath to logPath+".zst" and removes the original.
// Failures are logged, not returned: archival is best-effort and must
// never affect the scheduler's own state transitions.
func (a *Archiver) Archive(taskID uint64, logPath string) {
	if !a.Enabled {
		return
	}
	if err := a.archive(logPath); err != nil {
		log.Warn("log archival failed", append(log.TaskFields(taskID), "path", logPath, "error", err)...)
	}
}

func (a *Archiver) archive(logPath string) error {
	src, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no per-task log file to archive
		}
		return err
	}
	defer src.Close()

	dstPath := logPath + ".zst"
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}

	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return err
	}

	return os.Remove(logPath)
}

// Read returns a log file's content, transparently decompressing it if
// only the ".zst" form remains on disk.
func Read(logPath string) ([]byte, error) {
	if data, err := os.ReadFile(logPath); err == nil {
		return data, nil
	}

	compressed, err := os.Open(logPath + ".zst")
	if err != nil {
		return nil, err
	}
	defer compressed.Close()

	dec, err := zstd.NewReader(compressed)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return io.ReadAll(dec)
}

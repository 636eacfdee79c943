// Package storage provides safe local-filesystem primitives for the durable state the
// core keeps outside the knowledge base: the offline queue, the nudge dedupe ledger,
// and local caches. The core writer is AtomicWriteFile, used wherever a partially
// written file would corrupt state on crash/restart.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jnyross/secondbrain/internal/logging"
	"go.uber.org/zap"
)

// defaultFilePerm restricts the final file to owner read/write only.
const defaultFilePerm = 0o600

// EnsureDir makes sure the parent directory of path exists.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// AtomicWriteFile atomically writes data to path.
//
// Algorithm: temp file in the same directory, permissions fixed up front -> write ->
// fsync(temp) -> close -> rename -> best-effort fsync(dir). Either the old file survives
// intact or the new one is written in full; os.Rename is atomic only within a single
// volume.
func AtomicWriteFile(path string, data []byte) error {
	clean := filepath.Clean(path)
	if err := EnsureDir(clean); err != nil {
		return err
	}
	dir := filepath.Dir(clean)

	tmp, err := os.OpenFile(filepath.Join(dir, tempName()), os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, clean); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	syncDirBestEffort(dir)
	return nil
}

// tempName returns a unique name for AtomicWriteFile's scratch file, scoped to the
// process and a counter so concurrent writers in the same directory never collide.
func tempName() string {
	tempNameMu.Lock()
	defer tempNameMu.Unlock()
	tempNameSeq++
	return fmt.Sprintf("atomic-%d-%d.tmp", os.Getpid(), tempNameSeq)
}

var (
	tempNameMu  sync.Mutex
	tempNameSeq uint64
)

// syncDirBestEffort fsyncs dir so the rename above survives a crash; failure is logged,
// not fatal, since the rename itself already landed.
func syncDirBestEffort(dir string) {
	dirFile, err := os.Open(dir)
	if err != nil {
		return
	}
	defer func() { _ = dirFile.Close() }()
	if err := dirFile.Sync(); err != nil {
		logging.Warn("atomic write: dir sync failed", zap.Error(err))
	}
}

// AppendLine appends a single line (with trailing newline) to path, creating the file
// and parent directory if needed. Used by the offline queue's append-only log, where
// full atomic-rewrite-per-append would be wasteful; the file is fsynced after every
// append.
func AppendLine(path string, line []byte) error {
	if err := EnsureDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return fmt.Errorf("append newline to %s: %w", path, err)
		}
	}
	return f.Sync()
}

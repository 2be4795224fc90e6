package repository

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// staleAfter is how old a leftover staging directory must be before Begin
// removes it.
const staleAfter = 10 * time.Minute

type txState int

const (
	txOpen txState = iota
	txCommitted
	txRolledBack
)

var errTxClosed = errors.New("transaction already finished")

// CopyOnWriteTx stages a new version of the data directory beside the live
// one and swaps it in with two renames on Commit. Readers never see a
// half-written catalog.
type CopyOnWriteTx struct {
	live    string
	staging string
	backup  string
	layout  []string
	state   txState
}

// NewCopyOnWriteTx prepares a transaction on baseDir. layout lists the
// subdirectories a brand-new data directory starts with.
func NewCopyOnWriteTx(baseDir string, layout ...string) *CopyOnWriteTx {
	stamp := time.Now().UnixNano()
	return &CopyOnWriteTx{
		live:    baseDir,
		staging: fmt.Sprintf("%s.tmp.%d", baseDir, stamp),
		backup:  fmt.Sprintf("%s.backup.%d", baseDir, stamp),
		layout:  layout,
	}
}

// Begin recovers from an interrupted swap, then fills the staging
// directory with a copy of the live one.
func (tx *CopyOnWriteTx) Begin() error {
	if err := recoverInterrupted(tx.live); err != nil {
		return err
	}

	if _, err := os.Stat(tx.live); errors.Is(err, fs.ErrNotExist) {
		for _, dir := range append([]string{"."}, tx.layout...) {
			if err := os.MkdirAll(filepath.Join(tx.staging, dir), 0o755); err != nil {
				return fmt.Errorf("create staging layout: %w", err)
			}
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}

	if err := copyTree(tx.live, tx.staging); err != nil {
		_ = os.RemoveAll(tx.staging)
		return fmt.Errorf("stage data directory: %w", err)
	}
	return nil
}

// WriteFile replaces a file in the staging directory.
func (tx *CopyOnWriteTx) WriteFile(rel string, content []byte) error {
	if tx.state != txOpen {
		return errTxClosed
	}
	path := filepath.Join(tx.staging, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// WriteYAML marshals v into a staged file.
func (tx *CopyOnWriteTx) WriteYAML(rel string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rel, err)
	}
	return tx.WriteFile(rel, data)
}

// ReadFile reads a staged file, including writes made earlier in the
// transaction. A missing file matches fs.ErrNotExist.
func (tx *CopyOnWriteTx) ReadFile(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(tx.staging, rel))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, nil
}

// ReadYAML decodes a staged file into v. found is false when the file does
// not exist or is empty.
func (tx *CopyOnWriteTx) ReadYAML(rel string, v any) (found bool, err error) {
	data, err := tx.ReadFile(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", rel, err)
	}
	return true, nil
}

// Commit moves the live directory aside, renames the staging directory
// into its place and drops the old copy. A failed second rename puts the
// old directory back.
func (tx *CopyOnWriteTx) Commit() error {
	if tx.state != txOpen {
		return errTxClosed
	}

	hadLive := true
	if err := os.Rename(tx.live, tx.backup); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move data directory aside: %w", err)
		}
		hadLive = false
	}

	if err := os.Rename(tx.staging, tx.live); err != nil {
		if hadLive {
			if restoreErr := os.Rename(tx.backup, tx.live); restoreErr != nil {
				return fmt.Errorf("swap in staged directory: %w (restore failed: %v)", err, restoreErr)
			}
		}
		return fmt.Errorf("swap in staged directory: %w", err)
	}
	tx.state = txCommitted

	if hadLive {
		if err := os.RemoveAll(tx.backup); err != nil {
			slog.Warn("Failed to remove previous catalog directory", "path", tx.backup, "error", err)
		}
	}
	return nil
}

// Rollback discards the staging directory.
func (tx *CopyOnWriteTx) Rollback() error {
	if tx.state == txCommitted {
		return errTxClosed
	}
	tx.state = txRolledBack
	if err := os.RemoveAll(tx.staging); err != nil {
		return fmt.Errorf("discard staging directory: %w", err)
	}
	return nil
}

// TempDir returns the staging directory.
func (tx *CopyOnWriteTx) TempDir() string {
	return tx.staging
}

// recoverInterrupted restores the newest backup when a previous Commit
// stopped between its two renames, and removes stale staging directories.
func recoverInterrupted(live string) error {
	backups, err := filepath.Glob(live + ".backup.*")
	if err != nil {
		return err
	}
	sort.Strings(backups)

	if _, err := os.Stat(live); errors.Is(err, fs.ErrNotExist) && len(backups) > 0 {
		newest := backups[len(backups)-1]
		slog.Warn("Restoring catalog directory from interrupted commit", "backup", newest)
		if err := os.Rename(newest, live); err != nil {
			return fmt.Errorf("restore %s: %w", newest, err)
		}
		backups = backups[:len(backups)-1]
	}

	staging, err := filepath.Glob(live + ".tmp.*")
	if err != nil {
		return err
	}
	for _, dir := range append(backups, staging...) {
		info, err := os.Stat(dir)
		if err != nil || time.Since(info.ModTime()) < staleAfter {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove stale catalog directory", "path", dir, "error", err)
		}
	}
	return nil
}

// copyTree copies src to dst file by file, keeping permissions. Hard links
// would let staged writes leak into the live directory.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

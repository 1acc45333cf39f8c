package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomicDurable persists data at path so that path either does not
// exist or holds exactly data, even across a crash:
//
//  1. create a temp file in the same directory as path
//  2. write, fsync, close
//  3. rename over path
//  4. fsync the directory so the rename itself is durable
//
// On any failure before the rename the temp file is removed.
func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := tmp.Write(data)
	if err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("write temp: short write %d of %d bytes", n, len(data))
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	committed = true

	if err := fsyncDir(dir); err != nil {
		return fmt.Errorf("fsync dir: %w", err)
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

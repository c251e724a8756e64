package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const debugDirLock = ".obfstr.lock"

// writeDebugFile writes a rewritten file to -debugdir, under its package's
// import path. Packages compile in parallel, and the same package may
// compile more than once per build, such as its test variant, so writers
// hold a lock on the directory.
func writeDebugFile(importPath, basename string, content []byte) error {
	lock := flock.New(filepath.Join(flagDebugDir, debugDirLock))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock -debugdir: %w", err)
	}
	defer lock.Unlock()

	pkgDir := filepath.Join(flagDebugDir, filepath.FromSlash(importPath))
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(pkgDir, basename), content, 0o666)
}

package main

import (
	"bytes"
	"cmp"
	"fmt"
	"go/parser"
	"go/token"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/module"

	"github.com/burrowers/obfstr/internal/literals"
)

// transformer holds the state of one toolexec invocation.
type transformer struct {
	// importPath is the package being compiled, without the
	// " [pkg.test]" suffix of test variants.
	importPath string

	// seed is what keys derive from.
	seed uint64

	// workDir holds the rewritten files until the tool has run.
	workDir string
}

var transformMethods = map[string]func(*transformer, []string) ([]string, error){
	"compile": (*transformer).transformCompile,
	"link":    (*transformer).transformLink,
}

// packagesPattern returns the comma-separated import path patterns of
// the packages to rewrite.
func packagesPattern() string {
	return cmp.Or(os.Getenv("OBFSTR_PACKAGES"), "*") // we default to everything
}

func (tf *transformer) cleanup() {
	if tf.workDir != "" {
		os.RemoveAll(tf.workDir)
	}
}

func (tf *transformer) transformCompile(args []string) ([]string, error) {
	flags, paths := splitFlagsFromFiles(args, ".go")
	if len(paths) == 0 {
		// Nothing to transform; probably just ["-V=full"].
		return args, nil
	}
	if tf.importPath == "" {
		// Note that the main package always uses `-p main`.
		tf.importPath = flagValue(flags, "-p")
	}
	tf.importPath, _, _ = strings.Cut(tf.importPath, " ")
	if !module.MatchPrefixPatterns(packagesPattern(), tf.importPath) {
		log.Printf("skipping %s as it does not match OBFSTR_PACKAGES", tf.importPath)
		return args, nil
	}

	start := time.Now()
	fset := token.NewFileSet()
	newPaths := make([]string, len(paths))
	rewritten := 0
	for i, path := range paths {
		newPaths[i] = path

		// The Go file paths given to the compiler are always absolute paths.
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !bytes.Contains(src, []byte(literals.ImportPath)) {
			continue // cheap check to avoid parsing most files
		}
		file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
		if err != nil {
			return nil, err
		}
		basename := filepath.Base(path)
		changed, err := literals.Obfuscate(fset, file, tf.importPath+"/"+basename, tf.seed)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		src, err = printFile(fset, file)
		if err != nil {
			return nil, err
		}
		if newPaths[i], err = tf.writeSourceFile(basename, src); err != nil {
			return nil, err
		}
		log.Printf("rewrote %s/%s", tf.importPath, basename)
		rewritten++
	}
	if rewritten > 0 {
		log.Printf("rewrote %d files in %s in %s", rewritten, tf.importPath, debugSince(start))
	}
	return append(flags, newPaths...), nil
}

// writeSourceFile writes a rewritten file to the work directory,
// and to -debugdir if set, returning the path to compile.
func (tf *transformer) writeSourceFile(basename string, content []byte) (string, error) {
	if flagDebugDir != "" {
		if err := writeDebugFile(tf.importPath, basename, content); err != nil {
			return "", err
		}
	}
	if tf.workDir == "" {
		dir, err := os.MkdirTemp("", "obfstr-compile-")
		if err != nil {
			return "", err
		}
		tf.workDir = dir
	}
	dstPath := filepath.Join(tf.workDir, basename)
	if err := writeFileExclusive(dstPath, content); err != nil {
		return "", err
	}
	return dstPath, nil
}

func (tf *transformer) transformLink(args []string) ([]string, error) {
	if !flagSeed.present() {
		return args, nil
	}
	// Markers which were not rewritten, such as obf.Random called through
	// a func value, derive their values from the same seed at run time.
	// cmd/link ignores -X flags for packages which are not linked in.
	xflag := fmt.Sprintf("-X=%s.seedOverride=%s", literals.ImportPath, flagSeed)
	return append([]string{xflag}, args...), nil
}

func createExclusive(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
}

func writeFileExclusive(name string, data []byte) error {
	f, err := createExclusive(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	return err
}

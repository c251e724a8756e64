// Copyright (c) 2019, The Garble Authors.
// See LICENSE for licensing information.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

var flagSet = flag.NewFlagSet("obfstr", flag.ContinueOnError)

var (
	flagSeed     seedFlag
	flagDebug    bool
	flagDebugDir string
)

func init() {
	flagSet.Usage = usage
	flagSet.Var(&flagSeed, "seed", "Seed for key derivation; \"random\" picks a new one (default $OBFSTR_SEED)")
	flagSet.BoolVar(&flagDebug, "debug", false, "Print debug logs to stderr")
	flagSet.StringVar(&flagDebugDir, "debugdir", "", "Write the rewritten Go source to a directory, e.g. -debugdir=out")
}

func usage() {
	fmt.Fprint(os.Stderr, `
Obfstr hides constants and control flow in Go programs by rewriting
calls to the github.com/burrowers/obfstr/obf marker functions.

	obfstr [obfstr flags] command [arguments]

For example, to build a program with its marked literals encrypted:

	obfstr build ./cmd/foo

The following commands are supported:

	build          replace "go build"
	test           replace "go test"
	run            replace "go run"
	rewrite        print the rewritten form of Go files
	encode         print the ciphertext of a string
	hash           print the hash of a string, as used for keys
	version        print the version and build settings of the obfstr binary

obfstr accepts the following flags before a command:

`[1:])
	flagSet.PrintDefaults()
	fmt.Fprint(os.Stderr, `

The OBFSTR_PACKAGES environment variable limits rewriting to a
comma-separated list of import path prefix patterns, like GOPRIVATE.
`[1:])
}

func main() { os.Exit(main1()) }

// errJustExit exits with a status code without printing anything,
// for errors which were already reported.
type errJustExit int

func (e errJustExit) Error() string { return fmt.Sprintf("exit: %d", e) }

func main1() int {
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return 2
	}
	log.SetPrefix("[obfstr] ")
	log.SetFlags(0) // no timestamps, as they aren't very useful
	if flagDebug {
		log.SetOutput(&uniqueLineWriter{out: os.Stderr})
	} else {
		log.SetOutput(io.Discard)
	}
	args := flagSet.Args()
	if err := mainErr(args); err != nil {
		var exitErr *exec.ExitError
		var justExit errJustExit
		switch {
		case errors.As(err, &justExit):
			return int(justExit)
		case errors.As(err, &exitErr):
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func mainErr(args []string) error {
	if len(args) == 0 {
		usage()
		return errJustExit(2)
	}
	if !flagSeed.present() {
		if env := os.Getenv("OBFSTR_SEED"); env != "" {
			if err := flagSeed.Set(env); err != nil {
				return fmt.Errorf("invalid OBFSTR_SEED: %w", err)
			}
		}
	}

	switch command, args := args[0], args[1:]; command {
	case "help":
		if hasHelpFlag(args) || len(args) > 1 {
			fmt.Fprintf(os.Stderr, "usage: obfstr help [command]\n")
			return errJustExit(2)
		}
		if len(args) == 1 {
			return mainErr([]string{args[0], "-h"})
		}
		usage()
		return errJustExit(2)
	case "version":
		if hasHelpFlag(args) || len(args) > 0 {
			fmt.Fprintf(os.Stderr, "usage: obfstr version\n")
			return errJustExit(2)
		}
		printVersion(os.Stdout)
		return nil
	case "rewrite":
		return commandRewrite(args)
	case "encode":
		return commandEncode(args)
	case "hash":
		return commandHash(args)
	case "build", "test", "run":
		cmd, err := toolexecCmd(command, args)
		if err != nil {
			return err
		}
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		log.Printf("calling via toolexec: %s", cmd)
		return cmd.Run()
	}

	if !filepath.IsAbs(args[0]) {
		return fmt.Errorf("unknown command: %q", args[0])
	}

	// We are running as go's -toolexec.
	_, tool := filepath.Split(args[0])
	if runtime.GOOS == "windows" {
		tool = strings.TrimSuffix(tool, ".exe")
	}
	if len(args) == 2 && args[1] == "-V=full" {
		return alterToolVersion(tool, args)
	}

	tf := &transformer{
		importPath: os.Getenv("TOOLEXEC_IMPORTPATH"),
		seed:       flagSeed.seed(),
	}
	defer tf.cleanup()

	toolArgs := args[1:]
	if transform := transformMethods[tool]; transform != nil {
		var err error
		if toolArgs, err = transform(tf, toolArgs); err != nil {
			return err
		}
	}
	cmd := exec.Command(args[0], toolArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// toolexecCmd builds the "go <command>" invocation which runs the toolchain
// through this same binary, passing our flags down.
func toolexecCmd(command string, args []string) (*exec.Cmd, error) {
	if hasHelpFlag(args) {
		out, _ := exec.Command("go", command, "-h").CombinedOutput()
		fmt.Fprintf(os.Stderr, `
usage: obfstr [obfstr flags] %s [arguments]

This command wraps "go %s". Below is its help:

%s`[1:], command, command, out)
		return nil, errJustExit(2)
	}
	if flagSeed.random {
		fmt.Fprintf(os.Stderr, "-seed chosen at random: %s\n", flagSeed)
	}
	if flagDebugDir != "" {
		// The toolexec processes run from each package's directory.
		var err error
		if flagDebugDir, err = filepath.Abs(flagDebugDir); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(flagDebugDir, 0o755); err != nil {
			return nil, err
		}
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	// Quote the path in case it contains spaces.
	toolexecFlag := "-toolexec=" + quoteFlagValue(execPath)
	var flags strings.Builder
	appendFlags(&flags, false)
	toolexecFlag += flags.String()

	goArgs := append([]string{command, toolexecFlag}, args...)
	return exec.Command("go", goArgs...), nil
}

func printVersion(w io.Writer) {
	mod := &debug.Module{Path: "github.com/burrowers/obfstr", Version: "(devel)"}
	info, ok := debug.ReadBuildInfo()
	if ok && info.Main.Path == mod.Path {
		mod = &info.Main
		if mod.Replace != nil {
			mod = mod.Replace
		}
	}
	fmt.Fprintf(w, "%s %s\n\n", mod.Path, mod.Version)
	fmt.Fprintf(w, "Build settings:\n")
	if ok {
		for _, setting := range info.Settings {
			if setting.Value == "" {
				continue // do empty build settings even matter?
			}
			// The padding helps keep readability by aligning:
			//
			//   veryverylong.key value
			//          short.key some-other-value
			//
			// Empirically, 16 is enough; the longest key seen is "vcs.revision".
			fmt.Fprintf(w, "%16s %s\n", setting.Key, setting.Value)
		}
	}
}

// Copyright (c) 2019, The Garble Authors.
// See LICENSE for licensing information.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/rogpeppe/go-internal/gotooltest"
	"github.com/rogpeppe/go-internal/testscript"

	"github.com/burrowers/obfstr/internal/literals"
	"github.com/burrowers/obfstr/obf"
)

func TestMain(m *testing.M) {
	// If GORACE is unset, lower the default of atexit_sleep_ms=1000,
	// since otherwise every execution of obfstr through the test binary
	// would sleep for one second before exiting.
	// Given how many times obfstr runs via toolexec, that is very slow!
	// If GORACE is set, we assume that the caller knows what they are doing,
	// and we don't try to replace or modify their flags.
	if os.Getenv("GORACE") == "" {
		os.Setenv("GORACE", "atexit_sleep_ms=10")
	}
	if os.Getenv("RUN_OBFSTR_MAIN") == "true" {
		main()
		return
	}
	testscript.Main(m, map[string]func(){
		"obfstr": main,
	})
}

var update = flag.Bool("u", false, "update testscript output files")

func TestScript(t *testing.T) {
	t.Parallel()

	root, err := filepath.Abs(".")
	qt.Assert(t, qt.IsNil(err))

	p := testscript.Params{
		Dir: filepath.Join("testdata", "script"),
		Setup: func(env *testscript.Env) error {
			// Scripts build modules which replace our module with this
			// checkout, so they need no network access.
			env.Setenv("OBFSTR_ROOT", root)
			env.Setenv("GOPROXY", "off")
			env.Setenv("GOSUMDB", "off")
			env.Setenv("GOFLAGS", "-mod=mod")

			// Our own dependencies are in the host's module cache,
			// as they were needed to build this test binary.
			out, err := exec.Command("go", "env", "GOMODCACHE").Output()
			if err != nil {
				return err
			}
			env.Setenv("GOMODCACHE", strings.TrimSpace(string(out)))

			// "go build" starts many short-lived Go processes,
			// such as asm, buildid, compile, and link.
			// They don't allocate huge amounts of memory,
			// and they'll exit within seconds,
			// so using the GC is basically a waste of CPU.
			env.Setenv("GOGC", "off")
			return nil
		},
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"binsubstr": binsubstr,
			"grepfiles": grepfiles,
		},
		UpdateScripts:       *update,
		RequireExplicitExec: true,
		RequireUniqueNames:  true,
	}
	if err := gotooltest.Setup(&p); err != nil {
		t.Fatal(err)
	}
	testscript.Run(t, p)
}

func binsubstr(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) < 2 {
		ts.Fatalf("usage: binsubstr file substr...")
	}
	data := ts.ReadFile(args[0])
	var failed []string
	for _, substr := range args[1:] {
		match := strings.Contains(data, substr)
		if match && neg {
			failed = append(failed, substr)
		} else if !match && !neg {
			failed = append(failed, substr)
		}
	}
	if len(failed) > 0 && neg {
		ts.Fatalf("unexpected match for %q in %s", failed, args[0])
	} else if len(failed) > 0 {
		ts.Fatalf("expected match for %q in %s", failed, args[0])
	}
}

func grepfiles(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 2 {
		ts.Fatalf("usage: grepfiles path pattern")
	}
	anyFound := false
	path, pattern := ts.MkAbs(args[0]), args[1]
	rx := regexp.MustCompile(pattern)
	if err := filepath.WalkDir(path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if rx.MatchString(path) {
			if neg {
				return fmt.Errorf("%q matches %q", path, pattern)
			} else {
				anyFound = true
				return fs.SkipAll
			}
		}
		return nil
	}); err != nil {
		ts.Fatalf("%s", err)
	}
	if !neg && !anyFound {
		ts.Fatalf("no matches for %q", pattern)
	}
}

func TestSplitFlagsFromFiles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		ext  string
		want [2][]string
	}{
		{"Empty", []string{}, ".go", [2][]string{nil, {}}},
		{
			"JustFlags",
			[]string{"-foo", "bar", "-baz"},
			".go",
			[2][]string{{"-foo", "bar", "-baz"}, {}},
		},
		{
			"JustFiles",
			[]string{"a.go", "b.go"},
			".go",
			[2][]string{nil, {"a.go", "b.go"}},
		},
		{
			"FlagsAndFiles",
			[]string{"-p", "main", "-complete", "/work/a.go", "/work/b.go"},
			".go",
			[2][]string{{"-p", "main", "-complete"}, {"/work/a.go", "/work/b.go"}},
		},
		{
			"FlagValueLikePath",
			[]string{"-p", "pkg/path.go", "-complete", "file.go"},
			".go",
			[2][]string{{"-p", "pkg/path.go", "-complete"}, {"file.go"}},
		},
		{
			"OtherExtension",
			[]string{"-o", "out", "main.a"},
			".go",
			[2][]string{{"-o", "out", "main.a"}, {}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			flags, files := splitFlagsFromFiles(test.args, test.ext)
			if files == nil {
				files = []string{}
			}
			got := [2][]string{flags, files}

			qt.Assert(t, qt.DeepEquals(got, test.want))
		})
	}
}

func TestFlagValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		flags    []string
		flagName string
		want     string
	}{
		{"StrSpace", []string{"-p", "bar"}, "-p", "bar"},
		{"StrSpaceDash", []string{"-p", "-bar"}, "-p", "-bar"},
		{"StrEqual", []string{"-p=bar"}, "-p", "bar"},
		{"StrEqualDash", []string{"-p=-bar"}, "-p", "-bar"},
		{"StrMissing", []string{"-foo"}, "-p", ""},
		{"StrNotFollowed", []string{"-p"}, "-p", ""},
		{"StrEmpty", []string{"-p="}, "-p", ""},
		{"StrRepeated", []string{"-p=first", "-p", "last"}, "-p", "last"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := flagValue(test.flags, test.flagName)
			qt.Assert(t, qt.DeepEquals(got, test.want))
		})
	}
}

func TestSeedFlag(t *testing.T) {
	var f seedFlag
	qt.Assert(t, qt.IsFalse(f.present()))
	qt.Assert(t, qt.Equals(f.seed(), obf.SeedFrom(obf.DefaultSeed)))

	qt.Assert(t, qt.IsNotNil(f.Set("")))

	qt.Assert(t, qt.IsNil(f.Set("some seed")))
	qt.Assert(t, qt.IsTrue(f.present()))
	qt.Assert(t, qt.IsFalse(f.random))
	qt.Assert(t, qt.Equals(f.seed(), obf.SeedFrom("some seed")))

	var r1, r2 seedFlag
	qt.Assert(t, qt.IsNil(r1.Set("random")))
	qt.Assert(t, qt.IsNil(r2.Set("random")))
	qt.Assert(t, qt.IsTrue(r1.random))
	qt.Assert(t, qt.HasLen(r1.String(), 22)) // 16 bytes in unpadded base64
	qt.Assert(t, qt.Not(qt.Equals(r1.String(), r2.String())))
}

func TestAppendFlags(t *testing.T) {
	defer func(seed seedFlag, debug bool, dir string) {
		flagSeed, flagDebug, flagDebugDir = seed, debug, dir
	}(flagSeed, flagDebug, flagDebugDir)

	flagSeed = seedFlag{value: "two words"}
	flagDebug = true
	flagDebugDir = "/tmp/dbg"

	var buf bytes.Buffer
	appendFlags(&buf, false)
	qt.Assert(t, qt.Equals(buf.String(), ` -debug -debugdir=/tmp/dbg -seed="two words"`))

	// Debugging flags do not change the build output.
	buf.Reset()
	appendFlags(&buf, true)
	qt.Assert(t, qt.Equals(buf.String(), ` -seed="two words"`))
}

func TestPrintFilePositions(t *testing.T) {
	const src = `package p

import "github.com/burrowers/obfstr/obf"

func f() (string, int) {
	i := 0
	obf.Stmt(func() {
		i += 2
		i *= 3
	})
	return obf.Str("hello"), i
}

func g() {}
`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "/src/p.go", src, parser.ParseComments)
	qt.Assert(t, qt.IsNil(err))
	changed, err := literals.Obfuscate(fset, file, "test/p/p.go", 1)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(changed))

	out, err := printFile(fset, file)
	qt.Assert(t, qt.IsNil(err))

	// The printed file still reports the original positions.
	fset2 := token.NewFileSet()
	file2, err := parser.ParseFile(fset2, "/tmp/work/p.go", out, 0)
	qt.Assert(t, qt.IsNil(err), qt.Commentf("%s", out))
	var g *ast.FuncDecl
	for _, decl := range file2.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == "g" {
			g = fn
		}
	}
	qt.Assert(t, qt.IsNotNil(g))
	pos := fset2.Position(g.Pos())
	qt.Assert(t, qt.Equals(pos.Filename, "/src/p.go"))
	qt.Assert(t, qt.Equals(pos.Line, 14), qt.Commentf("%s", out))
	qt.Assert(t, qt.IsFalse(bytes.Contains(out, []byte(`"hello"`))))
}

package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"path/filepath"
	"strconv"

	ah "github.com/burrowers/obfstr/internal/asthelper"
	"github.com/burrowers/obfstr/internal/literals"
	"github.com/burrowers/obfstr/obf"
)

// newCommandFlags returns a flag set for a subcommand, with its usage line.
func newCommandFlags(name, usageLine string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: obfstr %s\n", usageLine)
		fs.PrintDefaults()
	}
	return fs
}

// parseCommandFlags parses args, which on failure were already reported
// along with the usage.
func parseCommandFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errJustExit(2)
	}
	return nil
}

// commandRewrite prints or writes the rewritten form of Go files,
// the same way a build would compile them.
func commandRewrite(args []string) error {
	fs := newCommandFlags("rewrite", "rewrite [-w] [-o dir] files...")
	write := fs.Bool("w", false, "write the result to the source files")
	outDir := fs.String("o", "", "write the results to a directory")
	if err := parseCommandFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 || (*write && *outDir != "") {
		fs.Usage()
		return errJustExit(2)
	}

	seed := flagSeed.seed()
	for _, path := range fs.Args() {
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return err
		}
		if _, err := literals.Obfuscate(fset, file, filepath.ToSlash(path), seed); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := format.Node(&buf, fset, file); err != nil {
			return err
		}
		switch {
		case *write:
			err = os.WriteFile(path, buf.Bytes(), 0o666)
		case *outDir != "":
			if err := os.MkdirAll(*outDir, 0o777); err != nil {
				return err
			}
			err = os.WriteFile(filepath.Join(*outDir, filepath.Base(path)), buf.Bytes(), 0o666)
		default:
			_, err = os.Stdout.Write(buf.Bytes())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// commandEncode prints the key and ciphertext of a string as Go syntax.
func commandEncode(args []string) error {
	fs := newCommandFlags("encode", "encode [-wide] [-key K] text")
	wide := fs.Bool("wide", false, "encode as UTF-16 words")
	keyFlag := fs.String("key", "", "32-bit key, such as 0x10203040 (default derived from the seed and text)")
	if err := parseCommandFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errJustExit(2)
	}
	text := fs.Arg(0)

	var key uint32
	if *keyFlag != "" {
		k, err := strconv.ParseUint(*keyFlag, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid -key: %w", err)
		}
		key = uint32(k)
	} else {
		key = uint32(obf.DeriveKey(flagSeed.seed(), "encode", text))
	}

	var lit ast.Expr
	if *wide {
		lit = ah.WordArrayLit(obf.EncodeWords(key, obf.Wide(text)))
	} else {
		lit = ah.ByteArrayLit(obf.Encode(key, []byte(text)))
	}
	fmt.Printf("key  0x%08x\n", key)
	fmt.Printf("data ")
	if err := printer.Fprint(os.Stdout, token.NewFileSet(), lit); err != nil {
		return err
	}
	fmt.Println()
	return nil
}

// commandHash prints the hashes which fold identifiers into keys.
func commandHash(args []string) error {
	fs := newCommandFlags("hash", "hash [-key K] text")
	keyFlag := fs.String("key", "0", "32-bit Murmur3 key")
	if err := parseCommandFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errJustExit(2)
	}
	key, err := strconv.ParseUint(*keyFlag, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid -key: %w", err)
	}
	text := fs.Arg(0)
	fmt.Printf("djb2     0x%08x\n", obf.Hash(text))
	fmt.Printf("murmur3  0x%08x\n", obf.Murmur3([]byte(text), uint32(key)))
	fmt.Printf("entropy  0x%016x\n", obf.Entropy(flagSeed.seed(), text))
	return nil
}

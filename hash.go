// Copyright (c) 2019, The Garble Authors.
// See LICENSE for licensing information.

package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const buildIDSeparator = "/"

// splitContentID returns the content ID half of a build ID, the last component.
func splitContentID(buildID string) string {
	return buildID[strings.LastIndex(buildID, buildIDSeparator)+1:]
}

// decodeHash is the opposite of hashToString, with a panic for error handling
// since it should never happen.
func decodeHash(str string) []byte {
	h, err := base64.RawURLEncoding.DecodeString(str)
	if err != nil {
		panic(fmt.Sprintf("invalid hash %q: %v", str, err))
	}
	return h
}

// alterToolVersion runs "tool -V=full" and adds our own inputs to the
// content ID it prints, so that cmd/go does not reuse cached packages
// built by a different obfstr binary or with a different seed.
func alterToolVersion(tool string, args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		if err, _ := err.(*exec.ExitError); err != nil {
			return fmt.Errorf("%v: %s", err, err.Stderr)
		}
		return err
	}
	line := string(bytes.TrimSpace(out)) // no trailing newline
	f := strings.Fields(line)
	if len(f) < 3 || f[0] != tool || f[1] != "version" || f[2] == "devel" && !strings.HasPrefix(f[len(f)-1], "buildID=") {
		return fmt.Errorf("%s -V=full: unexpected output:\n\t%s", args[0], line)
	}
	var toolID []byte
	if f[2] == "devel" {
		// On the development branch, use the content ID part of the build ID.
		toolID = decodeHash(splitContentID(f[len(f)-1]))
	} else {
		// For a release, the output is like: "compile version go1.9.1 X:framepointer".
		// Use the whole line, as we can assume it's unique.
		toolID = []byte(line)
	}

	binaryID, err := binaryContentID()
	if err != nil {
		return err
	}
	contentID := addObfstrToHash(toolID, binaryID)
	// The part of the build ID that matters is the last, since it's the
	// "content ID" which is used to work out whether there is a need to redo
	// the action (build) or not. Since cmd/go parses the last word in the
	// output as "buildID=...", we simply add "+obfstr buildID=_/_/_/${hash}".
	// The slashes let us imitate a full binary build ID, but we assume that
	// the other components such as the action ID are not necessary, since the
	// only reader here is cmd/go and it only consumes the content ID.
	fmt.Printf("%s +obfstr buildID=_/_/_/%s\n", line, hashToString(contentID))
	return nil
}

// binaryContentID returns the content ID of the running obfstr binary.
func binaryContentID() ([]byte, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	buildID, err := buildidOf(execPath)
	if err != nil {
		return nil, err
	}
	return decodeHash(splitContentID(strings.TrimSpace(buildID))), nil
}

// addObfstrToHash takes some arbitrary input bytes,
// typically a hash such as an action ID or a content ID,
// and returns a new hash which also contains obfstr's own deterministic inputs.
//
// This includes obfstr's own version, obtained via its own binary's content ID,
// as well as any other options which affect a build, such as the seed and
// OBFSTR_PACKAGES.
func addObfstrToHash(inputHash, binaryID []byte) []byte {
	hasher := sha256.New()
	hasher.Write(inputHash)
	hasher.Write(binaryID)

	// We also need to add the selected options to the full version string,
	// because all of them result in different output. We use spaces to
	// separate the env vars and flags, to reduce the chances of collisions.
	fmt.Fprintf(hasher, " OBFSTR_PACKAGES=%s", packagesPattern())
	appendFlags(hasher, true)
	return hasher.Sum(nil)[:buildIDComponentLength]
}

// appendFlags writes obfstr's own flags to w in string form.
// Errors are ignored, as w is always a buffer or hasher.
// If forBuildHash is set, only the flags affecting a build are written.
func appendFlags(w io.Writer, forBuildHash bool) {
	if flagDebug && !forBuildHash {
		// -debug doesn't affect the build result at all,
		// so don't give it separate entries in the build cache.
		// If the user really wants to see debug info for already built deps,
		// they can use "go clean cache" or the "-a" build flag to rebuild.
		io.WriteString(w, " -debug")
	}
	if flagDebugDir != "" && !forBuildHash {
		// As with -debug, cached packages are not written again;
		// use the -a build flag to fill a new directory.
		io.WriteString(w, " -debugdir=")
		io.WriteString(w, quoteFlagValue(flagDebugDir))
	}
	if flagSeed.present() {
		io.WriteString(w, " -seed=")
		io.WriteString(w, quoteFlagValue(flagSeed.String()))
	}
}

// quoteFlagValue quotes s if cmd/go would otherwise split the
// -toolexec string on it.
func quoteFlagValue(s string) string {
	if strings.ContainsAny(s, " \t\n'\"") {
		return strconv.Quote(s)
	}
	return s
}

// buildIDComponentLength is the number of bytes each build ID component takes,
// such as an action ID or a content ID.
const buildIDComponentLength = 15

// hashToString encodes the first 120 bits of a sha256 sum in base64, the same
// format used for components in a build ID.
func hashToString(h []byte) string {
	return base64.RawURLEncoding.EncodeToString(h[:buildIDComponentLength])
}

func buildidOf(path string) (string, error) {
	cmd := exec.Command("go", "tool", "buildid", path)
	out, err := cmd.Output()
	if err != nil {
		if err, _ := err.(*exec.ExitError); err != nil {
			return "", fmt.Errorf("%v: %s", err, err.Stderr)
		}
		return "", err
	}
	return string(out), nil
}

//go:build !obfstr_debug

package obf

// checkText enables UTF-8 validation of decoded strings; see DecodeString.
const checkText = false

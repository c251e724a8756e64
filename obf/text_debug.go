//go:build obfstr_debug

package obf

const checkText = true

// Copyright (c) 2020, The Garble Authors.
// See LICENSE for licensing information.

package obf

import (
	"fmt"
	"math"
	"reflect"
	"runtime"

	"golang.org/x/exp/constraints"
)

// Number is the set of types accepted by Num.
type Number interface {
	constraints.Integer | constraints.Float
}

// Randomizable is the set of types accepted by Random.
type Randomizable interface {
	constraints.Integer | constraints.Float | ~bool
}

// Random returns a pseudorandom value fixed per call site. Extra seeds
// tell apart call sites which share a position, such as code generated
// in a loop.
//
// The obfstr command replaces each call with a literal at build time.
// Integers cover their whole range, floats fall in [1, 2), and the type
// argument must be a predeclared type; anything else fails the build.
// Rewritten int, uint and uintptr values only get 32 random bits, so the
// literal is valid for every GOARCH.
// Without rewriting, the value derives from the caller's file and line.
func Random[T Randomizable](seeds ...string) T {
	_, file, line, _ := runtime.Caller(1)
	ids := append([]string{fmt.Sprintf("%s:%d", file, line)}, seeds...)
	return FromEntropy[T](DeriveKey(Seed(), ids...))
}

// FromEntropy converts the bits e into a value of type T the way Random does.
func FromEntropy[T Randomizable](e uint64) T {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Bool:
		rv.SetBool(int64(e) >= 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv.SetInt(int64(e))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		rv.SetUint(e)
	case reflect.Float32:
		rv.SetFloat(float64(RandomFloat32(e)))
	case reflect.Float64:
		rv.SetFloat(RandomFloat64(e))
	}
	return v
}

// RandomFloat32 maps e into [1, 2) by filling the mantissa of 1.0.
func RandomFloat32(e uint64) float32 {
	return math.Float32frombits(0x3f800000 | uint32(e)>>9)
}

// RandomFloat64 maps e into [1, 2) by filling the mantissa of 1.0.
func RandomFloat64(e uint64) float64 {
	return math.Float64frombits(0x3ff0000000000000 | e>>12)
}

package literals

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"math"
	"strconv"
	"strings"

	ah "github.com/burrowers/obfstr/internal/asthelper"
	"github.com/burrowers/obfstr/obf"
)

type intType struct {
	bits   int
	signed bool
}

// intTypes are the predeclared integer types by name. Platform-sized
// types are checked as 64 bits wide.
var intTypes = map[string]intType{
	"int":     {64, true},
	"int8":    {8, true},
	"int16":   {16, true},
	"int32":   {32, true},
	"rune":    {32, true},
	"int64":   {64, true},
	"uint":    {64, false},
	"uint8":   {8, false},
	"byte":    {8, false},
	"uint16":  {16, false},
	"uint32":  {32, false},
	"uint64":  {64, false},
	"uintptr": {64, false},
}

func typeName(expr ast.Expr) string {
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return types.ExprString(expr)
}

// obfuscateNum rewrites obf.Num[T](v) into a decode of the encrypted bits
// of v, converted back to T. Without a type argument, T is the default
// type of the constant.
func (r *rewriter) obfuscateNum(call *ast.CallExpr, typeArg ast.Expr) (ast.Node, error) {
	if err := r.args(call, 1); err != nil {
		return nil, err
	}
	tv, err := r.evalConst(call.Args[0])
	if err != nil {
		return nil, err
	}
	var name string
	if typeArg != nil {
		name = typeName(typeArg)
	} else {
		name = types.Default(tv.Type).String()
	}

	key := uint32(r.entropy(call))
	keyLit := ah.HexLit(uint64(key))
	switch name {
	case "float64":
		f, err := r.floatValue(call, tv.Value, 64)
		if err != nil {
			return nil, err
		}
		bits := obf.EncodeUint64(key, math.Float64bits(f))
		return ah.CallExpr(r.sel("DecodeFloat64"), keyLit, ah.HexLit(bits)), nil
	case "float32":
		f, err := r.floatValue(call, tv.Value, 32)
		if err != nil {
			return nil, err
		}
		bits := obf.EncodeUint64(key, uint64(math.Float32bits(float32(f))))
		return ah.CallExpr(r.sel("DecodeFloat32"), keyLit, ah.HexLit(bits)), nil
	}
	typ, ok := intTypes[name]
	if !ok {
		return nil, r.errorf(call, "obf.Num: unsupported type %s", name)
	}
	v, err := r.intValue(call, tv.Value, typ)
	if err != nil {
		return nil, err
	}
	bits := obf.EncodeUint64(key, v)
	return ah.Conv(name, ah.CallExpr(r.sel("DecodeUint64"), keyLit, ah.HexLit(bits))), nil
}

// intValue returns the two's complement bits of an integer constant,
// checking that it fits in typ.
func (r *rewriter) intValue(call *ast.CallExpr, val constant.Value, typ intType) (uint64, error) {
	if iv := constant.ToInt(val); iv.Kind() == constant.Int {
		val = iv
	} else {
		return 0, r.errorf(call, "obf.Num: %s is not an integer", val)
	}
	if typ.signed {
		v, exact := constant.Int64Val(val)
		if !exact || (typ.bits < 64 && (v < -1<<(typ.bits-1) || v >= 1<<(typ.bits-1))) {
			return 0, r.errorf(call, "obf.Num: %s overflows int%d", val, typ.bits)
		}
		return uint64(v), nil
	}
	v, exact := constant.Uint64Val(val)
	if !exact || (typ.bits < 64 && v >= 1<<typ.bits) {
		return 0, r.errorf(call, "obf.Num: %s overflows uint%d", val, typ.bits)
	}
	return v, nil
}

func (r *rewriter) floatValue(call *ast.CallExpr, val constant.Value, bits int) (float64, error) {
	val = constant.ToFloat(val)
	if val.Kind() != constant.Float {
		return 0, r.errorf(call, "obf.Num: %s is not a float", val)
	}
	var f float64
	if bits == 32 {
		f32, _ := constant.Float32Val(val)
		f = float64(f32)
	} else {
		f, _ = constant.Float64Val(val)
	}
	if math.IsInf(f, 0) {
		return 0, r.errorf(call, "obf.Num: %s overflows float%d", val, bits)
	}
	return f, nil
}

// random rewrites obf.Random[T](seeds...) into a literal of type T.
func (r *rewriter) random(call *ast.CallExpr, typeArg ast.Expr) (ast.Node, error) {
	if typeArg == nil {
		return nil, r.errorf(call, "obf.Random needs a type argument")
	}
	if call.Ellipsis.IsValid() {
		return nil, r.errorf(call, "obf.Random seeds must be string constants")
	}
	seeds := make([]string, len(call.Args))
	for i, arg := range call.Args {
		s, err := r.stringConstant(arg)
		if err != nil {
			return nil, err
		}
		seeds[i] = s
	}
	name := typeName(typeArg)
	lit, ok := randomLit(name, r.entropy(call, seeds...))
	if !ok {
		return nil, r.errorf(call, "obf.Random: unsupported type %s", name)
	}
	return lit, nil
}

// randomLit returns the literal FromEntropy would produce for the type name.
// Platform-sized integers get 32 bits, so the literal fits any GOARCH.
func randomLit(name string, e uint64) (ast.Expr, bool) {
	var lit string
	kind := token.INT
	switch name {
	case "bool":
		return ast.NewIdent(strconv.FormatBool(obf.FromEntropy[bool](e))), true
	case "int8":
		lit = strconv.FormatInt(int64(obf.FromEntropy[int8](e)), 10)
	case "int16":
		lit = strconv.FormatInt(int64(obf.FromEntropy[int16](e)), 10)
	case "int32", "rune", "int":
		lit = strconv.FormatInt(int64(obf.FromEntropy[int32](e)), 10)
	case "int64":
		lit = strconv.FormatInt(obf.FromEntropy[int64](e), 10)
	case "uint8", "byte":
		lit = strconv.FormatUint(uint64(obf.FromEntropy[uint8](e)), 10)
	case "uint16":
		lit = strconv.FormatUint(uint64(obf.FromEntropy[uint16](e)), 10)
	case "uint32", "uint", "uintptr":
		lit = strconv.FormatUint(uint64(obf.FromEntropy[uint32](e)), 10)
	case "uint64":
		lit = strconv.FormatUint(obf.FromEntropy[uint64](e), 10)
	case "float32":
		lit, kind = strconv.FormatFloat(float64(obf.FromEntropy[float32](e)), 'g', -1, 32), token.FLOAT
	case "float64":
		lit, kind = strconv.FormatFloat(obf.FromEntropy[float64](e), 'g', -1, 64), token.FLOAT
	default:
		return nil, false
	}
	var expr ast.Expr
	if abs, ok := strings.CutPrefix(lit, "-"); ok {
		expr = &ast.UnaryExpr{Op: token.SUB, X: &ast.BasicLit{Kind: kind, Value: abs}}
	} else {
		expr = &ast.BasicLit{Kind: kind, Value: lit}
	}
	return ah.Conv(name, expr), true
}

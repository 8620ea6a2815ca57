package jscore

import (
	"strings"

	"github.com/anode-js/jscore/unistring"
)

func (r *Runtime) builtin_String(call FunctionCall) (Value, error) {
	s := ""
	if len(call.Arguments) > 0 {
		arg := call.Arguments[0]
		if sym, ok := arg.(*Symbol); ok && call.NewTarget == nil {
			return newStringValue(sym.String()), nil
		}
		var err error
		if s, err = r.toStringValue(arg); err != nil {
			return nil, err
		}
	}
	if call.NewTarget == nil {
		return newStringValue(s), nil
	}
	proto, err := r.getPrototypeFromConstructor(call.NewTarget, r.realm.stringProto)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(proto)
	return r.newPrimitiveObject(newStringValue(s), proto, ClassString)
}

func (r *Runtime) thisStringValue(v Value, method string) (string, error) {
	if s, ok := v.(valueString); ok {
		return string(s), nil
	}
	if p, ok := primitiveOf(v, ClassString); ok {
		return p.String(), nil
	}
	return "", r.throwTypeError("String.prototype.%s requires that 'this' be a String", method)
}

// coercibleString implements the RequireObjectCoercible plus ToString
// prologue of the generic String methods.
func (r *Runtime) coercibleString(v Value, method string) (string, error) {
	if isNullish(v) {
		return "", r.throwTypeError("String.prototype.%s called on null or undefined", method)
	}
	return r.toStringValue(v)
}

// indexOfCodeUnits searches for sub in s starting at code unit from and
// returns the code unit offset or -1.
func indexOfCodeUnits(s, sub string, from int) int {
	if unistring.IsASCII(s) && unistring.IsASCII(sub) {
		if from > len(s) {
			return -1
		}
		if i := strings.Index(s[from:], sub); i >= 0 {
			return i + from
		}
		return -1
	}
	hs, ns := unistring.CodeUnits(s), unistring.CodeUnits(sub)
outer:
	for i := from; i+len(ns) <= len(hs); i++ {
		for j := range ns {
			if hs[i+j] != ns[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func (r *Runtime) stringproto_toString(call FunctionCall) (Value, error) {
	s, err := r.thisStringValue(call.This, "toString")
	if err != nil {
		return nil, err
	}
	return newStringValue(s), nil
}

func (r *Runtime) stringproto_valueOf(call FunctionCall) (Value, error) {
	s, err := r.thisStringValue(call.This, "valueOf")
	if err != nil {
		return nil, err
	}
	return newStringValue(s), nil
}

func (r *Runtime) stringproto_charAt(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "charAt")
	if err != nil {
		return nil, err
	}
	pos, err := r.toIntegerOrInfinity(call.Argument(0))
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= float64(stringLength(s)) {
		return stringEmpty, nil
	}
	return newStringValue(stringCodeUnit(s, int(pos))), nil
}

func (r *Runtime) stringproto_charCodeAt(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "charCodeAt")
	if err != nil {
		return nil, err
	}
	pos, err := r.toIntegerOrInfinity(call.Argument(0))
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= float64(stringLength(s)) {
		return _NaN, nil
	}
	if unistring.IsASCII(s) {
		return intToValue(int64(s[int(pos)])), nil
	}
	return intToValue(int64(unistring.CodeUnits(s)[int(pos)])), nil
}

func (r *Runtime) stringproto_at(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "at")
	if err != nil {
		return nil, err
	}
	rel, err := r.toIntegerOrInfinity(call.Argument(0))
	if err != nil {
		return nil, err
	}
	n := float64(stringLength(s))
	if rel < 0 {
		rel += n
	}
	if rel < 0 || rel >= n {
		return _undefined, nil
	}
	return newStringValue(stringCodeUnit(s, int(rel))), nil
}

func (r *Runtime) stringproto_indexOf(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "indexOf")
	if err != nil {
		return nil, err
	}
	sub, err := r.toStringValue(call.Argument(0))
	if err != nil {
		return nil, err
	}
	pos, err := r.toIntegerOrInfinity(call.Argument(1))
	if err != nil {
		return nil, err
	}
	start := int(relativeIndex(pos, int64(stringLength(s))))
	if pos < 0 {
		start = 0
	}
	return intToValue(int64(indexOfCodeUnits(s, sub, start))), nil
}

func (r *Runtime) stringproto_includes(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "includes")
	if err != nil {
		return nil, err
	}
	sub, err := r.toStringValue(call.Argument(0))
	if err != nil {
		return nil, err
	}
	pos, err := r.toIntegerOrInfinity(call.Argument(1))
	if err != nil {
		return nil, err
	}
	start := 0
	if pos > 0 {
		start = int(relativeIndex(pos, int64(stringLength(s))))
	}
	return valueBool(indexOfCodeUnits(s, sub, start) >= 0), nil
}

func (r *Runtime) stringproto_slice(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "slice")
	if err != nil {
		return nil, err
	}
	n := int64(stringLength(s))
	start, err := r.toRelativeIndex(call.Argument(0), n, 0)
	if err != nil {
		return nil, err
	}
	end, err := r.toRelativeIndex(call.Argument(1), n, n)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return stringEmpty, nil
	}
	return newStringValue(unistring.Substring(s, int(start), int(end))), nil
}

func (r *Runtime) stringproto_substring(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "substring")
	if err != nil {
		return nil, err
	}
	n := float64(stringLength(s))
	clamp := func(v Value, def float64) (int, error) {
		if IsUndefined(v) {
			return int(def), nil
		}
		f, err := r.toIntegerOrInfinity(v)
		if err != nil {
			return 0, err
		}
		if f < 0 {
			f = 0
		} else if f > n {
			f = n
		}
		return int(f), nil
	}
	start, err := clamp(call.Argument(0), 0)
	if err != nil {
		return nil, err
	}
	end, err := clamp(call.Argument(1), n)
	if err != nil {
		return nil, err
	}
	if start > end {
		start, end = end, start
	}
	return newStringValue(unistring.Substring(s, start, end)), nil
}

func (r *Runtime) stringproto_toLowerCase(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "toLowerCase")
	if err != nil {
		return nil, err
	}
	return newStringValue(strings.ToLower(s)), nil
}

func (r *Runtime) stringproto_toUpperCase(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "toUpperCase")
	if err != nil {
		return nil, err
	}
	return newStringValue(strings.ToUpper(s)), nil
}

func (r *Runtime) stringproto_trim(call FunctionCall) (Value, error) {
	s, err := r.coercibleString(call.This, "trim")
	if err != nil {
		return nil, err
	}
	return newStringValue(strings.TrimFunc(s, isJSSpace)), nil
}

func (r *Runtime) string_fromCharCode(call FunctionCall) (Value, error) {
	units := make([]uint16, len(call.Arguments))
	for i, arg := range call.Arguments {
		f, err := r.toFloat(arg)
		if err != nil {
			return nil, err
		}
		units[i] = uint16(toUint32(f))
	}
	return newStringValue(unistring.FromUTF16(units)), nil
}

func (r *Runtime) initString(b *builder) {
	proto := r.realm.stringProto
	b.method(proto, "at", 1, r.stringproto_at)
	b.method(proto, "charAt", 1, r.stringproto_charAt)
	b.method(proto, "charCodeAt", 1, r.stringproto_charCodeAt)
	b.method(proto, "includes", 1, r.stringproto_includes)
	b.method(proto, "indexOf", 1, r.stringproto_indexOf)
	b.method(proto, "slice", 2, r.stringproto_slice)
	b.method(proto, "substring", 2, r.stringproto_substring)
	b.method(proto, "toLowerCase", 0, r.stringproto_toLowerCase)
	b.method(proto, "toString", 0, r.stringproto_toString)
	b.method(proto, "toUpperCase", 0, r.stringproto_toUpperCase)
	b.method(proto, "trim", 0, r.stringproto_trim)
	b.method(proto, "valueOf", 0, r.stringproto_valueOf)

	s := b.ctor("String", 1, r.builtin_String, proto)
	b.method(s, "fromCharCode", 1, r.string_fromCharCode)
}

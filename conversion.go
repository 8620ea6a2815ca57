package jscore

import (
	"math"

	"github.com/anode-js/jscore/unistring"
)

type primitiveHint uint8

const (
	hintDefault primitiveHint = iota
	hintNumber
	hintString
)

func (h primitiveHint) String() string {
	switch h {
	case hintNumber:
		return "number"
	case hintString:
		return "string"
	}
	return "default"
}

// toPrimitive implements ToPrimitive. The result is owned by the caller
// and is never an object.
func (r *Runtime) toPrimitive(v Value, hint primitiveHint) (Value, error) {
	o, ok := v.(*Object)
	if !ok {
		return valueOrUndefined(v), nil
	}
	exotic, err := r.getProperty(o, r.atoms.symToPrimitive, o)
	if err != nil {
		return nil, err
	}
	if !isNullish(exotic) {
		defer r.FreeValue(exotic)
		if !r.isCallable(exotic) {
			return nil, r.throwTypeError("Symbol.toPrimitive is not a function")
		}
		res, err := r.Call(exotic, o, newStringValue(hint.String()))
		if err != nil {
			return nil, err
		}
		if _, isObj := res.(*Object); isObj {
			r.FreeValue(res)
			return nil, r.throwTypeError("Cannot convert object to primitive value")
		}
		return res, nil
	}
	return r.ordinaryToPrimitive(o, hint)
}

func (r *Runtime) ordinaryToPrimitive(o *Object, hint primitiveHint) (Value, error) {
	methods := [2]atom{atomValueOf, atomToString}
	if hint == hintString {
		methods = [2]atom{atomToString, atomValueOf}
	}
	for _, m := range methods {
		f, err := r.getProperty(o, m, o)
		if err != nil {
			return nil, err
		}
		if r.isCallable(f) {
			res, err := r.Call(f, o)
			r.FreeValue(f)
			if err != nil {
				return nil, err
			}
			if _, isObj := res.(*Object); !isObj {
				return res, nil
			}
			r.FreeValue(res)
		} else {
			r.FreeValue(f)
		}
	}
	return nil, r.throwTypeError("Cannot convert object to primitive value")
}

// toNumber implements ToNumber; the result is a valueInt or valueFloat.
func (r *Runtime) toNumber(v Value) (Value, error) {
	switch n := v.(type) {
	case valueInt, valueFloat:
		return n, nil
	case valueBool, valueNull, valueString:
		return floatToValue(n.ToFloat()), nil
	case nil, valueUndefined, valueUninitialized:
		return _NaN, nil
	case *Symbol:
		return nil, r.throwTypeError("Cannot convert a Symbol value to a number")
	case *valueBigInt:
		return nil, r.throwTypeError("Cannot convert a BigInt value to a number")
	case *Object:
		p, err := r.toPrimitive(n, hintNumber)
		if err != nil {
			return nil, err
		}
		return r.toNumber(p)
	}
	return _NaN, nil
}

func (r *Runtime) toFloat(v Value) (float64, error) {
	n, err := r.toNumber(v)
	if err != nil {
		return 0, err
	}
	return n.ToFloat(), nil
}

// toStringValue implements ToString.
func (r *Runtime) toStringValue(v Value) (string, error) {
	switch s := v.(type) {
	case valueString:
		return string(s), nil
	case *Symbol:
		return "", r.throwTypeError("Cannot convert a Symbol value to a string")
	case *Object:
		p, err := r.toPrimitive(s, hintString)
		if err != nil {
			return "", err
		}
		return r.toStringValue(p)
	case nil:
		return "undefined", nil
	}
	return v.String(), nil
}

// toIntegerOrInfinity implements ToIntegerOrInfinity.
func (r *Runtime) toIntegerOrInfinity(v Value) (float64, error) {
	if i, ok := v.(valueInt); ok {
		return float64(i), nil
	}
	f, err := r.toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	if f == 0 {
		return 0, nil
	}
	return math.Trunc(f), nil
}

// toLength implements ToLength.
func (r *Runtime) toLength(v Value) (int64, error) {
	f, err := r.toIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, nil
	}
	if f > maxSafeInteger {
		return maxSafeInteger, nil
	}
	return int64(f), nil
}

// relativeIndex resolves a possibly negative relative position against
// length and clamps it to [0, length].
func relativeIndex(rel float64, length int64) int64 {
	if rel < 0 {
		rel += float64(length)
		if rel < 0 {
			return 0
		}
		return int64(rel)
	}
	if rel > float64(length) {
		return length
	}
	return int64(rel)
}

// toRelativeIndex reads an optional relative index argument. An absent or
// undefined argument yields def.
func (r *Runtime) toRelativeIndex(v Value, length, def int64) (int64, error) {
	if IsUndefined(v) {
		return def, nil
	}
	rel, err := r.toIntegerOrInfinity(v)
	if err != nil {
		return 0, err
	}
	return relativeIndex(rel, length), nil
}

// toObject implements ToObject. The result is owned by the caller.
func (r *Runtime) toObject(v Value) (*Object, error) {
	switch p := v.(type) {
	case *Object:
		p.refCount++
		return p, nil
	case nil, valueNull, valueUndefined, valueUninitialized:
		return nil, r.throwTypeError("Cannot convert undefined or null to object")
	case valueInt, valueFloat:
		return r.newPrimitiveObject(p, r.realm.numberProto, ClassNumber)
	case valueString:
		return r.newPrimitiveObject(p, r.realm.stringProto, ClassString)
	case valueBool:
		return r.newPrimitiveObject(p, r.realm.booleanProto, ClassBoolean)
	case *Symbol:
		return r.newPrimitiveObject(p, r.realm.symbolProto, ClassSymbol)
	}
	return r.newPrimitiveObject(v, r.realm.objectProto, ClassObject)
}

// newPrimitiveObject wraps v in a Number, String, Boolean or Symbol object.
func (r *Runtime) newPrimitiveObject(v Value, proto *Object, class ClassID) (*Object, error) {
	o, err := r.newObjectProtoClass(proto, class)
	if err != nil {
		return nil, err
	}
	o.payload = &primitiveData{v: v}
	if s, ok := v.(valueString); ok {
		if err := r.definePropertyValue(o, atomLength, intToValue(int64(stringLength(string(s)))), flagNone); err != nil {
			r.freeObjectRef(o)
			return nil, err
		}
	}
	return o, nil
}

// primitiveOf returns the wrapped value of a wrapper object of class.
func primitiveOf(v Value, class ClassID) (Value, bool) {
	o, ok := v.(*Object)
	if !ok || o.class != class {
		return nil, false
	}
	d, ok := o.payload.(*primitiveData)
	if !ok {
		return nil, false
	}
	return d.v, true
}

// lengthOfArrayLike implements LengthOfArrayLike.
func (r *Runtime) lengthOfArrayLike(o *Object) (int64, error) {
	if o.class == ClassArray {
		return int64(r.arrayLength(o)), nil
	}
	v, err := r.getProperty(o, atomLength, o)
	if err != nil {
		return 0, err
	}
	defer r.FreeValue(v)
	return r.toLength(v)
}

// isCallable reports whether v has a [[Call]] internal method.
func (r *Runtime) isCallable(v Value) bool {
	o, ok := v.(*Object)
	if !ok {
		return false
	}
	switch o.class {
	case ClassCFunction, ClassBytecodeFunction, ClassBoundFunction:
		return true
	}
	return false
}

// isConstructor reports whether v has a [[Construct]] internal method.
func (r *Runtime) isConstructor(v Value) bool {
	o, ok := v.(*Object)
	if !ok {
		return false
	}
	switch d := o.payload.(type) {
	case *nativeFunc:
		return d.ctor
	case *closureData:
		return d.b.isConstructor
	case *boundFunction:
		return r.isConstructor(d.target)
	}
	return false
}

func stringLength(s string) int {
	return unistring.Length(s)
}

// stringCodeUnit returns the code unit at i as a string, or "" when i is
// out of range.
func stringCodeUnit(s string, i int) string {
	if i < 0 {
		return ""
	}
	if unistring.IsASCII(s) {
		if i >= len(s) {
			return ""
		}
		return s[i : i+1]
	}
	if i >= unistring.Length(s) {
		return ""
	}
	return unistring.Substring(s, i, i+1)
}

// ToValue converts Go primitives to script values. Values pass through
// unchanged without a new reference.
func (r *Runtime) ToValue(i interface{}) Value {
	switch i := i.(type) {
	case nil:
		return _null
	case Value:
		return i
	case string:
		return newStringValue(i)
	case bool:
		if i {
			return valueTrue
		}
		return valueFalse
	case int:
		return intToValue(int64(i))
	case int8:
		return intToValue(int64(i))
	case int16:
		return intToValue(int64(i))
	case int32:
		return intToValue(int64(i))
	case int64:
		return intToValue(i)
	case uint8:
		return intToValue(int64(i))
	case uint16:
		return intToValue(int64(i))
	case uint32:
		return intToValue(int64(i))
	case uint:
		if uint64(i) <= math.MaxInt64 {
			return intToValue(int64(i))
		}
		return floatToValue(float64(i))
	case uint64:
		if i <= math.MaxInt64 {
			return intToValue(int64(i))
		}
		return floatToValue(float64(i))
	case float32:
		return floatToValue(float64(i))
	case float64:
		return floatToValue(i)
	}
	return _undefined
}

package jscore

import (
	"math"
	"sort"
	"strings"

	"github.com/anode-js/jscore/unistring"
)

// arrayThis converts the receiver of an Array method and reads its length.
// The object is owned by the caller.
func (r *Runtime) arrayThis(v Value) (*Object, int64, error) {
	o, err := r.toObject(v)
	if err != nil {
		return nil, 0, err
	}
	length, err := r.lengthOfArrayLike(o)
	if err != nil {
		r.freeObjectRef(o)
		return nil, 0, err
	}
	return o, length, nil
}

func (r *Runtime) toCallable(v Value) (*Object, error) {
	if o, ok := v.(*Object); ok && r.isCallable(o) {
		return o, nil
	}
	return nil, r.throwTypeError("%s is not a function", valueOrUndefined(v).String())
}

func (r *Runtime) setLength(o *Object, n int64) error {
	return r.setProperty(o, atomLength, intToValue(n), o, true)
}

func (r *Runtime) deleteIndex(o *Object, idx int64) error {
	return r.deletePropertyOrThrow(o, r.atoms.fromInt64(idx))
}

// fastArrayWritable is fastArrayValues restricted to arrays whose length
// can be rewritten in place.
func (r *Runtime) fastArrayWritable(o *Object, length int64) ([]Value, bool) {
	values, ok := r.fastArrayValues(o, length)
	if !ok || o.shape.props[0].flags&FlagWritable == 0 {
		return nil, false
	}
	return values, true
}

// arrayCreate returns a fast array of the given length with no elements.
func (r *Runtime) arrayCreate(length int64) (*Object, error) {
	if length > math.MaxUint32 {
		return nil, r.throwRangeError("Invalid array length")
	}
	a, err := r.newArrayObject(r.realm.arrayProto)
	if err != nil {
		return nil, err
	}
	if length > 0 {
		a.prop[0].value = intToValue(length)
	}
	return a, nil
}

// arraySpeciesCreate creates the result array of slice, splice, map,
// filter, concat and flat, honouring constructor[Symbol.species].
func (r *Runtime) arraySpeciesCreate(o *Object, length int64) (*Object, error) {
	if !isArray(o) {
		return r.arrayCreate(length)
	}
	c, err := r.getProperty(o, atomConstructor, o)
	if err != nil {
		return nil, err
	}
	if co, ok := c.(*Object); ok {
		s, err := r.getProperty(co, r.atoms.symSpecies, co)
		r.freeObjectRef(co)
		if err != nil {
			return nil, err
		}
		c = s
		if IsNull(c) {
			c = _undefined
		}
	}
	if IsUndefined(c) {
		return r.arrayCreate(length)
	}
	defer r.FreeValue(c)
	if !r.isConstructor(c) {
		return nil, r.throwTypeError("Species is not a constructor")
	}
	return r.constructObject(c, intToValue(length))
}

// constructObject runs a constructor and checks that it produced an object.
func (r *Runtime) constructObject(c Value, args ...Value) (*Object, error) {
	res, err := r.Construct(c, nil, args...)
	if err != nil {
		return nil, err
	}
	o, ok := res.(*Object)
	if !ok {
		r.FreeValue(res)
		return nil, r.throwTypeError("Constructor did not return an object")
	}
	return o, nil
}

// constructFromThis creates the result of Array.of and Array.from: an
// instance of this when it is a constructor other than Array, else a plain
// array.
func (r *Runtime) constructFromThis(this Value, length int64) (*Object, error) {
	if c, ok := this.(*Object); ok && c != r.realm.arrayCtor && r.isConstructor(c) {
		return r.constructObject(c, intToValue(length))
	}
	return r.arrayCreate(length)
}

func (r *Runtime) isConcatSpreadable(v Value) (bool, error) {
	o, ok := v.(*Object)
	if !ok {
		return false, nil
	}
	s, err := r.getProperty(o, r.atoms.symIsConcatSpreadable, o)
	if err != nil {
		return false, err
	}
	defer r.FreeValue(s)
	if !IsUndefined(s) {
		return s.ToBoolean(), nil
	}
	return isArray(o), nil
}

// copySubArray moves count elements from from to to, front to back when
// dir is positive and back to front otherwise. Holes are propagated.
func (r *Runtime) copySubArray(o *Object, to, from, count int64, dir int) error {
	for i := int64(0); i < count; {
		f, t := from+i, to+i
		if dir < 0 {
			f, t = from+count-i-1, to+count-i-1
		}
		if o.fastArray {
			values := o.payload.(*arrayStore).values
			n := int64(len(values))
			if f >= 0 && f < n && t >= 0 && t < n {
				var l int64
				if dir < 0 {
					l = min(count-i, f+1, t+1)
					for j := int64(0); j < l; j++ {
						old := values[t-j]
						values[t-j] = r.DupValue(values[f-j])
						r.FreeValue(old)
					}
				} else {
					l = min(count-i, n-f, n-t)
					for j := int64(0); j < l; j++ {
						old := values[t+j]
						values[t+j] = r.DupValue(values[f+j])
						r.FreeValue(old)
					}
				}
				i += l
				continue
			}
		}
		v, present, err := r.tryGetIndex(o, f)
		if err != nil {
			return err
		}
		if present {
			err = r.setIndex(o, t, v, true)
			r.FreeValue(v)
		} else {
			err = r.deleteIndex(o, t)
		}
		if err != nil {
			return err
		}
		i++
	}
	return nil
}

func (r *Runtime) builtin_Array(call FunctionCall) (Value, error) {
	proto, err := r.getPrototypeFromConstructor(call.NewTarget, r.realm.arrayProto)
	if err != nil {
		return nil, err
	}
	a, err := r.newArrayObject(proto)
	r.freeObjectRef(proto)
	if err != nil {
		return nil, err
	}
	if len(call.Arguments) == 1 {
		if _, ok := isNumber(call.Arguments[0]); ok {
			n, err := r.toArrayLength(call.Arguments[0])
			if err != nil {
				r.freeObjectRef(a)
				return nil, err
			}
			a.prop[0].value = intToValue(int64(n))
			return a, nil
		}
	}
	for _, arg := range call.Arguments {
		if err := r.addFastArrayElement(a, r.DupValue(arg)); err != nil {
			r.freeObjectRef(a)
			return nil, err
		}
	}
	return a, nil
}

func (r *Runtime) array_isArray(call FunctionCall) (Value, error) {
	return valueBool(isArray(call.Argument(0))), nil
}

func (r *Runtime) array_of(call FunctionCall) (Value, error) {
	n := int64(len(call.Arguments))
	a, err := r.constructFromThis(call.This, n)
	if err != nil {
		return nil, err
	}
	for i, v := range call.Arguments {
		if err := r.createDataPropertyIdx(a, int64(i), v); err != nil {
			r.freeObjectRef(a)
			return nil, err
		}
	}
	if err := r.setLength(a, n); err != nil {
		r.freeObjectRef(a)
		return nil, err
	}
	return a, nil
}

func (r *Runtime) array_from(call FunctionCall) (Value, error) {
	var mapFn *Object
	if arg := call.Argument(1); !IsUndefined(arg) {
		f, err := r.toCallable(arg)
		if err != nil {
			return nil, err
		}
		mapFn = f
	}
	thisArg := call.Argument(2)
	src, length, err := r.arrayThis(call.Argument(0))
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(src)
	a, err := r.constructFromThis(call.This, length)
	if err != nil {
		return nil, err
	}
	for k := int64(0); k < length; k++ {
		v, err := r.getIndex(src, k)
		if err == nil && mapFn != nil {
			var mv Value
			mv, err = r.callObject(mapFn, thisArg, []Value{v, intToValue(k)})
			r.FreeValue(v)
			v = mv
		}
		if err == nil {
			err = r.createDataPropertyIdx(a, k, v)
			r.FreeValue(v)
		}
		if err != nil {
			r.freeObjectRef(a)
			return nil, err
		}
	}
	if err := r.setLength(a, length); err != nil {
		r.freeObjectRef(a)
		return nil, err
	}
	return a, nil
}

func (r *Runtime) array_getSpecies(call FunctionCall) (Value, error) {
	return r.DupValue(call.This), nil
}

func (r *Runtime) arrayproto_at(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	rel, err := r.toIntegerOrInfinity(call.Argument(0))
	if err != nil {
		return nil, err
	}
	if rel < 0 {
		rel += float64(length)
	}
	if rel < 0 || rel >= float64(length) {
		return _undefined, nil
	}
	return r.getIndex(o, int64(rel))
}

func (r *Runtime) arrayproto_concat(call FunctionCall) (Value, error) {
	o, err := r.toObject(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	a, err := r.arraySpeciesCreate(o, 0)
	if err != nil {
		return nil, err
	}
	n, err := r.concatInto(a, o, call.Arguments)
	if err == nil {
		err = r.setLength(a, n)
	}
	if err != nil {
		r.freeObjectRef(a)
		return nil, err
	}
	return a, nil
}

func (r *Runtime) concatInto(a, o *Object, args []Value) (int64, error) {
	n := int64(0)
	items := append([]Value{o}, args...)
	for _, item := range items {
		spread, err := r.isConcatSpreadable(item)
		if err != nil {
			return 0, err
		}
		if !spread {
			if n >= maxSafeInteger {
				return 0, r.lengthOverflow()
			}
			if err := r.createDataPropertyIdx(a, n, item); err != nil {
				return 0, err
			}
			n++
			continue
		}
		e := item.(*Object)
		length, err := r.lengthOfArrayLike(e)
		if err != nil {
			return 0, err
		}
		if n+length > maxSafeInteger {
			return 0, r.lengthOverflow()
		}
		for k := int64(0); k < length; k, n = k+1, n+1 {
			v, present, err := r.tryGetIndex(e, k)
			if err != nil {
				return 0, err
			}
			if present {
				err = r.createDataPropertyIdx(a, n, v)
				r.FreeValue(v)
				if err != nil {
					return 0, err
				}
			}
		}
	}
	return n, nil
}

func (r *Runtime) arrayproto_copyWithin(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	to, err := r.toRelativeIndex(call.Argument(0), length, 0)
	if err == nil {
		var from, final int64
		if from, err = r.toRelativeIndex(call.Argument(1), length, 0); err == nil {
			if final, err = r.toRelativeIndex(call.Argument(2), length, length); err == nil {
				count := min(final-from, length-to)
				dir := 1
				if from < to && to < from+count {
					dir = -1
				}
				if count > 0 {
					err = r.copySubArray(o, to, from, count, dir)
				}
			}
		}
	}
	if err != nil {
		r.freeObjectRef(o)
		return nil, err
	}
	return o, nil
}

func (r *Runtime) arrayproto_fill(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	k, err := r.toRelativeIndex(call.Argument(1), length, 0)
	if err == nil {
		var final int64
		if final, err = r.toRelativeIndex(call.Argument(2), length, length); err == nil {
			v := call.Argument(0)
			for ; k < final && err == nil; k++ {
				err = r.setIndex(o, k, v, true)
			}
		}
	}
	if err != nil {
		r.freeObjectRef(o)
		return nil, err
	}
	return o, nil
}

type arrayIterKind int

const (
	iterEvery arrayIterKind = iota
	iterSome
	iterForEach
	iterMap
	iterFilter
)

// arrayIterate implements every, some, forEach, map and filter. Holes are
// skipped and the callback may mutate the array between steps.
func (r *Runtime) arrayIterate(call FunctionCall, kind arrayIterKind) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	fn, err := r.toCallable(call.Argument(0))
	if err != nil {
		return nil, err
	}
	thisArg := call.Argument(1)
	var res *Object
	switch kind {
	case iterMap:
		res, err = r.arraySpeciesCreate(o, length)
	case iterFilter:
		res, err = r.arraySpeciesCreate(o, 0)
	}
	if err != nil {
		return nil, err
	}
	fail := func(err error) (Value, error) {
		if res != nil {
			r.freeObjectRef(res)
		}
		return nil, err
	}
	n := int64(0)
	for k := int64(0); k < length; k++ {
		v, present, err := r.tryGetIndex(o, k)
		if err != nil {
			return fail(err)
		}
		if !present {
			continue
		}
		ret, err := r.callObject(fn, thisArg, []Value{v, intToValue(k), o})
		if err != nil {
			r.FreeValue(v)
			return fail(err)
		}
		switch kind {
		case iterEvery:
			if !ret.ToBoolean() {
				r.FreeValue(ret)
				r.FreeValue(v)
				return valueFalse, nil
			}
		case iterSome:
			if ret.ToBoolean() {
				r.FreeValue(ret)
				r.FreeValue(v)
				return valueTrue, nil
			}
		case iterMap:
			err = r.createDataPropertyIdx(res, k, ret)
		case iterFilter:
			if ret.ToBoolean() {
				err = r.createDataPropertyIdx(res, n, v)
				n++
			}
		}
		r.FreeValue(ret)
		r.FreeValue(v)
		if err != nil {
			return fail(err)
		}
	}
	switch kind {
	case iterEvery:
		return valueTrue, nil
	case iterSome:
		return valueFalse, nil
	case iterMap, iterFilter:
		return res, nil
	}
	return _undefined, nil
}

func (r *Runtime) arrayproto_every(call FunctionCall) (Value, error) {
	return r.arrayIterate(call, iterEvery)
}

func (r *Runtime) arrayproto_some(call FunctionCall) (Value, error) {
	return r.arrayIterate(call, iterSome)
}

func (r *Runtime) arrayproto_forEach(call FunctionCall) (Value, error) {
	return r.arrayIterate(call, iterForEach)
}

func (r *Runtime) arrayproto_map(call FunctionCall) (Value, error) {
	return r.arrayIterate(call, iterMap)
}

func (r *Runtime) arrayproto_filter(call FunctionCall) (Value, error) {
	return r.arrayIterate(call, iterFilter)
}

// arrayFind implements find, findIndex, findLast and findLastIndex. Unlike
// the iteration methods, holes are visited as undefined.
func (r *Runtime) arrayFind(call FunctionCall, index, fromEnd bool) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	fn, err := r.toCallable(call.Argument(0))
	if err != nil {
		return nil, err
	}
	thisArg := call.Argument(1)
	for i := int64(0); i < length; i++ {
		k := i
		if fromEnd {
			k = length - 1 - i
		}
		v, err := r.getIndex(o, k)
		if err != nil {
			return nil, err
		}
		ret, err := r.callObject(fn, thisArg, []Value{v, intToValue(k), o})
		if err != nil {
			r.FreeValue(v)
			return nil, err
		}
		found := ret.ToBoolean()
		r.FreeValue(ret)
		if found {
			if index {
				r.FreeValue(v)
				return intToValue(k), nil
			}
			return v, nil
		}
		r.FreeValue(v)
	}
	if index {
		return intToValue(-1), nil
	}
	return _undefined, nil
}

func (r *Runtime) arrayproto_find(call FunctionCall) (Value, error) {
	return r.arrayFind(call, false, false)
}

func (r *Runtime) arrayproto_findIndex(call FunctionCall) (Value, error) {
	return r.arrayFind(call, true, false)
}

func (r *Runtime) arrayproto_findLast(call FunctionCall) (Value, error) {
	return r.arrayFind(call, false, true)
}

func (r *Runtime) arrayproto_findLastIndex(call FunctionCall) (Value, error) {
	return r.arrayFind(call, true, true)
}

// flattenIntoArray appends the elements of source to target, descending
// into nested arrays while depth allows. It returns the next target index.
func (r *Runtime) flattenIntoArray(target, source *Object, sourceLen, start int64, depth float64, mapper *Object, thisArg Value) (int64, error) {
	if r.callDepth >= r.opts.maxStackDepth {
		return 0, r.throwStackOverflow()
	}
	r.callDepth++
	defer func() { r.callDepth-- }()
	targetIndex := start
	for k := int64(0); k < sourceLen; k++ {
		el, present, err := r.tryGetIndex(source, k)
		if err != nil {
			return 0, err
		}
		if !present {
			continue
		}
		if mapper != nil {
			mv, err := r.callObject(mapper, thisArg, []Value{el, intToValue(k), source})
			r.FreeValue(el)
			if err != nil {
				return 0, err
			}
			el = mv
		}
		if eo, ok := el.(*Object); ok && depth > 0 && isArray(eo) {
			var n int64
			if n, err = r.lengthOfArrayLike(eo); err == nil {
				targetIndex, err = r.flattenIntoArray(target, eo, n, targetIndex, depth-1, nil, nil)
			}
		} else if targetIndex >= maxSafeInteger {
			err = r.lengthOverflow()
		} else {
			err = r.createDataPropertyIdx(target, targetIndex, el)
			targetIndex++
		}
		r.FreeValue(el)
		if err != nil {
			return 0, err
		}
	}
	return targetIndex, nil
}

func (r *Runtime) arrayFlat(call FunctionCall, flatMap bool) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	depth := 1.0
	var mapper *Object
	var thisArg Value = _undefined
	if flatMap {
		if mapper, err = r.toCallable(call.Argument(0)); err != nil {
			return nil, err
		}
		thisArg = call.Argument(1)
	} else if arg := call.Argument(0); !IsUndefined(arg) {
		if depth, err = r.toIntegerOrInfinity(arg); err != nil {
			return nil, err
		}
	}
	a, err := r.arraySpeciesCreate(o, 0)
	if err != nil {
		return nil, err
	}
	if _, err := r.flattenIntoArray(a, o, length, 0, depth, mapper, thisArg); err != nil {
		r.freeObjectRef(a)
		return nil, err
	}
	return a, nil
}

func (r *Runtime) arrayproto_flat(call FunctionCall) (Value, error) {
	return r.arrayFlat(call, false)
}

func (r *Runtime) arrayproto_flatMap(call FunctionCall) (Value, error) {
	return r.arrayFlat(call, true)
}

func (r *Runtime) arrayproto_includes(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	if length == 0 {
		return valueFalse, nil
	}
	n, err := r.toRelativeIndex(call.Argument(1), length, 0)
	if err != nil {
		return nil, err
	}
	search := call.Argument(0)
	if values, ok := r.fastArrayValues(o, length); ok {
		for ; n < length; n++ {
			if sameValueZero(values[n], search) {
				return valueTrue, nil
			}
		}
		return valueFalse, nil
	}
	for ; n < length; n++ {
		v, err := r.getIndex(o, n)
		if err != nil {
			return nil, err
		}
		found := sameValueZero(v, search)
		r.FreeValue(v)
		if found {
			return valueTrue, nil
		}
	}
	return valueFalse, nil
}

func (r *Runtime) arrayproto_indexOf(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	if length == 0 {
		return intToValue(-1), nil
	}
	n, err := r.toRelativeIndex(call.Argument(1), length, 0)
	if err != nil {
		return nil, err
	}
	search := call.Argument(0)
	if values, ok := r.fastArrayValues(o, length); ok {
		for ; n < length; n++ {
			if values[n].StrictEquals(search) {
				return intToValue(n), nil
			}
		}
		return intToValue(-1), nil
	}
	for ; n < length; n++ {
		v, present, err := r.tryGetIndex(o, n)
		if err != nil {
			return nil, err
		}
		found := present && v.StrictEquals(search)
		r.FreeValue(v)
		if found {
			return intToValue(n), nil
		}
	}
	return intToValue(-1), nil
}

func (r *Runtime) arrayproto_lastIndexOf(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	if length == 0 {
		return intToValue(-1), nil
	}
	n := length - 1
	if len(call.Arguments) > 1 {
		rel, err := r.toIntegerOrInfinity(call.Arguments[1])
		if err != nil {
			return nil, err
		}
		if rel >= 0 {
			if rel < float64(n) {
				n = int64(rel)
			}
		} else {
			n = int64(math.Max(rel+float64(length), -1))
		}
	}
	search := call.Argument(0)
	if values, ok := r.fastArrayValues(o, length); ok {
		for ; n >= 0; n-- {
			if values[n].StrictEquals(search) {
				return intToValue(n), nil
			}
		}
		return intToValue(-1), nil
	}
	for ; n >= 0; n-- {
		v, present, err := r.tryGetIndex(o, n)
		if err != nil {
			return nil, err
		}
		found := present && v.StrictEquals(search)
		r.FreeValue(v)
		if found {
			return intToValue(n), nil
		}
	}
	return intToValue(-1), nil
}

// arrayJoin concatenates the string forms of the elements of o. An array
// that is already being joined further up the stack contributes an empty
// string, which keeps self-referencing arrays from recursing forever.
func (r *Runtime) arrayJoin(o *Object, length int64, sep string, locale bool) (Value, error) {
	for _, p := range r.joinStack {
		if p == o {
			return stringEmpty, nil
		}
	}
	r.joinStack = append(r.joinStack, o)
	defer func() { r.joinStack = r.joinStack[:len(r.joinStack)-1] }()

	var sb strings.Builder
	for i := int64(0); i < length; i++ {
		if i > 0 {
			sb.WriteString(sep)
		}
		el, err := r.getIndex(o, i)
		if err != nil {
			return nil, err
		}
		if isNullish(el) {
			continue
		}
		var s string
		if locale {
			s, err = r.elementLocaleString(el)
		} else {
			s, err = r.toStringValue(el)
		}
		r.FreeValue(el)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return newStringValue(sb.String()), nil
}

func (r *Runtime) elementLocaleString(el Value) (string, error) {
	f, err := r.getProperty(el, atomToLocaleString, el)
	if err != nil {
		return "", err
	}
	res, err := r.Call(f, el)
	r.FreeValue(f)
	if err != nil {
		return "", err
	}
	defer r.FreeValue(res)
	return r.toStringValue(res)
}

func (r *Runtime) arrayproto_join(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	sep := ","
	if arg := call.Argument(0); !IsUndefined(arg) {
		if sep, err = r.toStringValue(arg); err != nil {
			return nil, err
		}
	}
	return r.arrayJoin(o, length, sep, false)
}

func (r *Runtime) arrayproto_toLocaleString(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	return r.arrayJoin(o, length, ",", true)
}

func (r *Runtime) arrayproto_toString(call FunctionCall) (Value, error) {
	o, err := r.toObject(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	join, err := r.getProperty(o, atomJoin, o)
	if err != nil {
		return nil, err
	}
	defer r.FreeValue(join)
	if !r.isCallable(join) {
		return r.objectproto_toString(FunctionCall{This: o})
	}
	return r.Call(join, o)
}

func (r *Runtime) arrayproto_pop(call FunctionCall) (Value, error) {
	return r.arrayPop(call, false)
}

func (r *Runtime) arrayproto_shift(call FunctionCall) (Value, error) {
	return r.arrayPop(call, true)
}

func (r *Runtime) arrayPop(call FunctionCall, shift bool) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	if length == 0 {
		if err := r.setLength(o, 0); err != nil {
			return nil, err
		}
		return _undefined, nil
	}
	newLen := length - 1
	if values, ok := r.fastArrayWritable(o, length); ok {
		var res Value
		if shift {
			res = values[0]
			copy(values, values[1:])
		} else {
			res = values[newLen]
		}
		values[newLen] = nil
		o.payload.(*arrayStore).values = values[:newLen]
		o.prop[0].value = intToValue(newLen)
		return res, nil
	}
	var res Value
	if shift {
		if res, err = r.getIndex(o, 0); err == nil {
			err = r.copySubArray(o, 0, 1, newLen, 1)
		}
	} else {
		res, err = r.getIndex(o, newLen)
	}
	if err == nil {
		if err = r.deleteIndex(o, newLen); err == nil {
			err = r.setLength(o, newLen)
		}
	}
	if err != nil {
		if res != nil {
			r.FreeValue(res)
		}
		return nil, err
	}
	return res, nil
}

func (r *Runtime) arrayproto_push(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	n := int64(len(call.Arguments))
	if length+n > maxSafeInteger {
		return nil, r.lengthOverflow()
	}
	for i, v := range call.Arguments {
		if err := r.setIndex(o, length+int64(i), v, true); err != nil {
			return nil, err
		}
	}
	if err := r.setLength(o, length+n); err != nil {
		return nil, err
	}
	return intToValue(length + n), nil
}

func (r *Runtime) arrayproto_unshift(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	n := int64(len(call.Arguments))
	if n > 0 {
		if length+n > maxSafeInteger {
			return nil, r.lengthOverflow()
		}
		if _, ok := r.fastArrayWritable(o, length); ok && o.extensible && length+n <= math.MaxUint32 {
			if err := r.expandFastArray(o, int(length+n)); err != nil {
				return nil, err
			}
			st := o.payload.(*arrayStore)
			values := st.values[:length+n]
			copy(values[n:], values[:length])
			for i, v := range call.Arguments {
				values[i] = r.DupValue(v)
			}
			st.values = values
			o.prop[0].value = intToValue(length + n)
			return intToValue(length + n), nil
		}
		if err := r.copySubArray(o, n, 0, length, -1); err != nil {
			return nil, err
		}
		for i, v := range call.Arguments {
			if err := r.setIndex(o, int64(i), v, true); err != nil {
				return nil, err
			}
		}
	}
	if err := r.setLength(o, length+n); err != nil {
		return nil, err
	}
	return intToValue(length + n), nil
}

func (r *Runtime) arrayReduce(call FunctionCall, right bool) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	fn, err := r.toCallable(call.Argument(0))
	if err != nil {
		return nil, err
	}
	k, step := int64(0), int64(1)
	if right {
		k, step = length-1, -1
	}
	inRange := func(k int64) bool {
		return k >= 0 && k < length
	}
	var acc Value
	if len(call.Arguments) >= 2 {
		acc = r.DupValue(call.Arguments[1])
	} else {
		for ; inRange(k); k += step {
			v, present, err := r.tryGetIndex(o, k)
			if err != nil {
				return nil, err
			}
			if present {
				acc = v
				k += step
				break
			}
		}
		if acc == nil {
			return nil, r.throwTypeError("Reduce of empty array with no initial value")
		}
	}
	for ; inRange(k); k += step {
		v, present, err := r.tryGetIndex(o, k)
		if err != nil {
			r.FreeValue(acc)
			return nil, err
		}
		if !present {
			continue
		}
		res, err := r.callObject(fn, _undefined, []Value{acc, v, intToValue(k), o})
		r.FreeValue(v)
		r.FreeValue(acc)
		if err != nil {
			return nil, err
		}
		acc = res
	}
	return acc, nil
}

func (r *Runtime) arrayproto_reduce(call FunctionCall) (Value, error) {
	return r.arrayReduce(call, false)
}

func (r *Runtime) arrayproto_reduceRight(call FunctionCall) (Value, error) {
	return r.arrayReduce(call, true)
}

func (r *Runtime) arrayproto_reverse(call FunctionCall) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	if values, ok := r.fastArrayValues(o, length); ok {
		for l, h := 0, len(values)-1; l < h; l, h = l+1, h-1 {
			values[l], values[h] = values[h], values[l]
		}
		return o, nil
	}
	for l, h := int64(0), length-1; l < h && err == nil; l, h = l+1, h-1 {
		err = r.swapIndices(o, l, h)
	}
	if err != nil {
		r.freeObjectRef(o)
		return nil, err
	}
	return o, nil
}

// swapIndices exchanges elements l and h, moving holes along with values.
func (r *Runtime) swapIndices(o *Object, l, h int64) error {
	lv, lp, err := r.tryGetIndex(o, l)
	if err != nil {
		return err
	}
	defer r.FreeValue(lv)
	hv, hp, err := r.tryGetIndex(o, h)
	if err != nil {
		return err
	}
	defer r.FreeValue(hv)
	if hp {
		err = r.setIndex(o, l, hv, true)
	} else {
		err = r.deleteIndex(o, l)
	}
	if err != nil {
		return err
	}
	if lp {
		return r.setIndex(o, h, lv, true)
	}
	return r.deleteIndex(o, h)
}

// arraySlice implements slice and, when splice is set, splice.
func (r *Runtime) arraySlice(call FunctionCall, splice bool) (Value, error) {
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	start, err := r.toRelativeIndex(call.Argument(0), length, 0)
	if err != nil {
		return nil, err
	}
	var count, itemCount int64
	if splice {
		switch len(call.Arguments) {
		case 0:
		case 1:
			count = length - start
		default:
			dc, err := r.toIntegerOrInfinity(call.Arguments[1])
			if err != nil {
				return nil, err
			}
			count = int64(math.Min(math.Max(dc, 0), float64(length-start)))
			itemCount = int64(len(call.Arguments) - 2)
		}
		if length+itemCount-count > maxSafeInteger {
			return nil, r.lengthOverflow()
		}
	} else {
		final, err := r.toRelativeIndex(call.Argument(1), length, length)
		if err != nil {
			return nil, err
		}
		count = max(final-start, 0)
	}
	a, err := r.arraySpeciesCreate(o, count)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (Value, error) {
		r.freeObjectRef(a)
		return nil, err
	}

	k, final, n := start, start+count, int64(0)
	for ; k < final && o.fastArray && a.fastArray; k, n = k+1, n+1 {
		values := o.payload.(*arrayStore).values
		if k >= int64(len(values)) {
			break
		}
		if err := r.createDataPropertyIdx(a, n, values[k]); err != nil {
			return fail(err)
		}
	}
	for ; k < final; k, n = k+1, n+1 {
		v, present, err := r.tryGetIndex(o, k)
		if err != nil {
			return fail(err)
		}
		if present {
			err = r.createDataPropertyIdx(a, n, v)
			r.FreeValue(v)
			if err != nil {
				return fail(err)
			}
		}
	}
	if err := r.setLength(a, n); err != nil {
		return fail(err)
	}
	if !splice {
		return a, nil
	}

	newLen := length + itemCount - count
	if itemCount != count {
		dir := 1
		if itemCount > count {
			dir = -1
		}
		from := start + count
		if err := r.copySubArray(o, start+itemCount, from, length-from, dir); err != nil {
			return fail(err)
		}
		for k := length; k > newLen; k-- {
			if err := r.deleteIndex(o, k-1); err != nil {
				return fail(err)
			}
		}
	}
	for i := int64(0); i < itemCount; i++ {
		if err := r.setIndex(o, start+i, call.Arguments[i+2], true); err != nil {
			return fail(err)
		}
	}
	if err := r.setLength(o, newLen); err != nil {
		return fail(err)
	}
	return a, nil
}

func (r *Runtime) arrayproto_slice(call FunctionCall) (Value, error) {
	return r.arraySlice(call, false)
}

func (r *Runtime) arrayproto_splice(call FunctionCall) (Value, error) {
	return r.arraySlice(call, true)
}

type arraySortEntry struct {
	v      Value
	str    string
	hasStr bool
	pos    int64
}

type arraySortCtx struct {
	r       *Runtime
	compare *Object
	err     error
}

// cmp orders two entries. Once a comparison has failed every further pair
// compares by original position so the sort finishes quickly.
func (c *arraySortCtx) cmp(a, b *arraySortEntry) int {
	res := 0
	if c.err == nil && a.v != b.v {
		res = c.cmpValues(a, b)
	}
	if res != 0 {
		return res
	}
	switch {
	case a.pos < b.pos:
		return -1
	case a.pos > b.pos:
		return 1
	}
	return 0
}

func (c *arraySortCtx) cmpValues(a, b *arraySortEntry) int {
	r := c.r
	if c.compare != nil {
		ret, err := r.callObject(c.compare, _undefined, []Value{a.v, b.v})
		if err != nil {
			c.err = err
			return 0
		}
		if i, ok := ret.(valueInt); ok {
			return sign(float64(i))
		}
		f, err := r.toFloat(ret)
		r.FreeValue(ret)
		if err != nil {
			c.err = err
			return 0
		}
		return sign(f)
	}
	for _, e := range []*arraySortEntry{a, b} {
		if !e.hasStr {
			s, err := r.toStringValue(e.v)
			if err != nil {
				c.err = err
				return 0
			}
			e.str, e.hasStr = s, true
		}
	}
	return unistring.Compare(a.str, b.str)
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}

func (r *Runtime) arrayproto_sort(call FunctionCall) (Value, error) {
	var compare *Object
	if arg := call.Argument(0); !IsUndefined(arg) {
		f, ok := arg.(*Object)
		if !ok || !r.isCallable(f) {
			return nil, r.throwTypeError("The comparison function must be either a function or undefined")
		}
		compare = f
	}
	o, length, err := r.arrayThis(call.This)
	if err != nil {
		return nil, err
	}
	var entries []arraySortEntry
	freeEntries := func(from int) {
		for _, e := range entries[from:] {
			r.FreeValue(e.v)
		}
	}
	fail := func(err error) (Value, error) {
		r.freeObjectRef(o)
		return nil, err
	}
	undefinedCount := int64(0)
	for k := int64(0); k < length; k++ {
		v, present, err := r.tryGetIndex(o, k)
		if err != nil {
			freeEntries(0)
			return fail(err)
		}
		if !present {
			continue
		}
		if IsUndefined(v) {
			undefinedCount++
			continue
		}
		entries = append(entries, arraySortEntry{v: v, pos: k})
	}

	ctx := &arraySortCtx{r: r, compare: compare}
	sort.SliceStable(entries, func(i, j int) bool {
		return ctx.cmp(&entries[i], &entries[j]) < 0
	})
	if ctx.err != nil {
		freeEntries(0)
		return fail(ctx.err)
	}

	pos := int64(0)
	for i, e := range entries {
		if e.pos != pos {
			if err := r.setIndex(o, pos, e.v, true); err != nil {
				freeEntries(i)
				return fail(err)
			}
		}
		r.FreeValue(e.v)
		pos++
	}
	for ; undefinedCount > 0; undefinedCount, pos = undefinedCount-1, pos+1 {
		if err := r.setIndex(o, pos, _undefined, true); err != nil {
			return fail(err)
		}
	}
	for ; pos < length; pos++ {
		if err := r.deleteIndex(o, pos); err != nil {
			return fail(err)
		}
	}
	return o, nil
}

func (r *Runtime) initArray(b *builder) {
	c := r.realm
	proto := c.arrayProto
	b.method(proto, "at", 1, r.arrayproto_at)
	b.method(proto, "concat", 1, r.arrayproto_concat)
	b.method(proto, "copyWithin", 2, r.arrayproto_copyWithin)
	b.method(proto, "every", 1, r.arrayproto_every)
	b.method(proto, "fill", 1, r.arrayproto_fill)
	b.method(proto, "filter", 1, r.arrayproto_filter)
	b.method(proto, "find", 1, r.arrayproto_find)
	b.method(proto, "findIndex", 1, r.arrayproto_findIndex)
	b.method(proto, "findLast", 1, r.arrayproto_findLast)
	b.method(proto, "findLastIndex", 1, r.arrayproto_findLastIndex)
	b.method(proto, "flat", 0, r.arrayproto_flat)
	b.method(proto, "flatMap", 1, r.arrayproto_flatMap)
	b.method(proto, "forEach", 1, r.arrayproto_forEach)
	b.method(proto, "includes", 1, r.arrayproto_includes)
	b.method(proto, "indexOf", 1, r.arrayproto_indexOf)
	b.method(proto, "join", 1, r.arrayproto_join)
	b.method(proto, "lastIndexOf", 1, r.arrayproto_lastIndexOf)
	b.method(proto, "map", 1, r.arrayproto_map)
	b.method(proto, "pop", 0, r.arrayproto_pop)
	b.method(proto, "push", 1, r.arrayproto_push)
	b.method(proto, "reduce", 1, r.arrayproto_reduce)
	b.method(proto, "reduceRight", 1, r.arrayproto_reduceRight)
	b.method(proto, "reverse", 0, r.arrayproto_reverse)
	b.method(proto, "shift", 0, r.arrayproto_shift)
	b.method(proto, "slice", 2, r.arrayproto_slice)
	b.method(proto, "some", 1, r.arrayproto_some)
	b.method(proto, "sort", 1, r.arrayproto_sort)
	b.method(proto, "splice", 2, r.arrayproto_splice)
	b.method(proto, "toLocaleString", 0, r.arrayproto_toLocaleString)
	b.method(proto, "toString", 0, r.arrayproto_toString)
	b.method(proto, "unshift", 1, r.arrayproto_unshift)

	a := b.ctor("Array", 1, r.builtin_Array, proto)
	if b.err != nil {
		return
	}
	a.refCount++
	c.arrayCtor = a
	b.method(a, "from", 1, r.array_from)
	b.method(a, "isArray", 1, r.array_isArray)
	b.method(a, "of", 0, r.array_of)
	b.getter(a, r.atoms.symSpecies, "[Symbol.species]", r.array_getSpecies)
}

package jscore

import (
	"strings"
	"testing"
)

// arrayProtoCall runs Array.prototype[name] with an arbitrary receiver.
func arrayProtoCall(t testing.TB, r *Runtime, name string, this Value, args ...Value) Value {
	t.Helper()
	fn, err := r.realm.arrayProto.Get(name)
	if err != nil {
		t.Fatal(err)
	}
	defer r.FreeValue(fn)
	res, err := r.Call(fn, this, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return keep(t, r, res)
}

func ints(values ...int) []interface{} {
	res := make([]interface{}, len(values))
	for i, v := range values {
		res[i] = int64(v)
	}
	return res
}

func numberArg(v Value) float64 {
	return v.ToFloat()
}

func TestArrayConstructor(t *testing.T) {
	r := newTestRuntime(t)
	ctor := mustGlobal(t, r, "Array")

	a, err := r.Construct(ctor, nil, r.ToValue(3))
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, a)
	assertExport(t, a, []interface{}{nil, nil, nil})
	if a.(*Object).HasOwn("0") {
		t.Fatal("Array(3) has elements")
	}

	a, err = r.Call(ctor, _undefined, r.ToValue("3"))
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, a)
	assertExport(t, a, []interface{}{"3"})

	a, err = r.Call(ctor, _undefined, r.ToValue(1), r.ToValue(2))
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, a)
	assertExport(t, a, ints(1, 2))

	if _, err := r.Call(ctor, _undefined, r.ToValue(1.5)); !IsKind(err, KindRangeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()

	assertExport(t, mustCall(t, r, ctor, "of", r.ToValue(7)), ints(7))
	assertExport(t, mustCall(t, r, ctor, "isArray", newTestArray(t, r)), true)
	assertExport(t, mustCall(t, r, ctor, "isArray", keepObject(t, r)(r.NewObject())), false)
}

func TestArrayFrom(t *testing.T) {
	r := newTestRuntime(t)
	ctor := mustGlobal(t, r, "Array")
	like := newTestObject(t, r)
	for k, v := range map[string]interface{}{"length": 2, "0": "a", "1": "b"} {
		if err := like.Set(k, r.ToValue(v)); err != nil {
			t.Fatal(err)
		}
	}
	assertExport(t, mustCall(t, r, ctor, "from", like), []interface{}{"a", "b"})
	assertExport(t, mustCall(t, r, ctor, "from", r.ToValue("xyz")), []interface{}{"x", "y", "z"})

	double := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		return r.ToValue(numberArg(call.Argument(0)) * 2), nil
	})
	assertExport(t, mustCall(t, r, ctor, "from", newTestArray(t, r, 1, 2, 3), double), ints(2, 4, 6))
	mustThrow(t, r, KindTypeError, ctor, "from", like, r.ToValue(1))
}

func TestArrayPushPop(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1)
	assertExport(t, mustCall(t, r, a, "push", r.ToValue(2), r.ToValue(3)), int64(3))
	assertExport(t, mustCall(t, r, a, "pop"), int64(3))
	assertExport(t, mustCall(t, r, a, "shift"), int64(1))
	assertExport(t, mustCall(t, r, a, "unshift", r.ToValue(-1), r.ToValue(0)), int64(3))
	assertExport(t, a, ints(-1, 0, 2))
	if !a.IsFastArray() {
		t.Fatal("push/pop/shift/unshift left fast storage")
	}

	empty := newTestArray(t, r)
	if v := mustCall(t, r, empty, "pop"); !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}
	if v := mustCall(t, r, empty, "shift"); !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}
}

func TestArrayPushGrowthPreservesIdentity(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r)
	elem := keepObject(t, r)(r.NewObject())
	for i := 0; i < 1000; i++ {
		mustCall(t, r, a, "push", elem)
	}
	if elem.RefCount() != 1001 {
		t.Fatalf("Unexpected refcount: %d", elem.RefCount())
	}
	for _, i := range []int64{0, 500, 999} {
		v, err := a.GetIdx(i)
		if err != nil {
			t.Fatal(err)
		}
		if v != elem {
			t.Fatalf("element %d is %v", i, v)
		}
		r.FreeValue(v)
	}
}

func TestArrayPushNonOptimisable(t *testing.T) {
	r := newTestRuntime(t)
	if err := r.realm.objectProto.DefineDataProperty("0", r.ToValue(42), FLAG_FALSE, FLAG_TRUE, FLAG_FALSE); err != nil {
		t.Fatal(err)
	}
	a := newTestArray(t, r)
	mustThrow(t, r, KindTypeError, a, "push", r.ToValue(1))
	if r.arrayLength(a) != 0 {
		t.Fatal("failed push changed the length")
	}
}

func TestArrayPushOverflow(t *testing.T) {
	r := newTestRuntime(t)
	like := keepObject(t, r)(r.NewObject())
	if err := like.Set("length", floatToValue(maxSafeInteger)); err != nil {
		t.Fatal(err)
	}
	push, err := r.realm.arrayProto.Get("push")
	if err != nil {
		t.Fatal(err)
	}
	defer r.FreeValue(push)
	if _, err := r.Call(push, like, r.ToValue(1)); err == nil || !strings.Contains(err.Error(), "Array too long") {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
	if _, err := r.Call(push, like); err != nil {
		t.Fatalf("push with no arguments: %v", err)
	}
}

func TestArrayConcat(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2)
	res := mustCall(t, r, a, "concat", newTestArray(t, r, 3), r.ToValue(4))
	assertExport(t, res, ints(1, 2, 3, 4))
	if res == Value(a) {
		t.Fatal("concat returned its receiver")
	}

	spread := newTestObject(t, r)
	if err := spread.Set("length", r.ToValue(2)); err != nil {
		t.Fatal(err)
	}
	if err := spread.SetIdx(1, r.ToValue("b")); err != nil {
		t.Fatal(err)
	}
	if err := r.setProperty(spread, r.atoms.symIsConcatSpreadable, valueTrue, spread, true); err != nil {
		t.Fatal(err)
	}
	res = mustCall(t, r, a, "concat", spread).(*Object)
	assertExport(t, res, []interface{}{int64(1), int64(2), nil, "b"})
	if res.(*Object).HasOwn("2") {
		t.Fatal("hole filled by concat")
	}
}

func TestArraySlice(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3, 4)
	assertExport(t, mustCall(t, r, a, "slice", r.ToValue(1), r.ToValue(-1)), ints(2, 3))
	assertExport(t, mustCall(t, r, a, "slice"), ints(1, 2, 3, 4))
	assertExport(t, mustCall(t, r, a, "slice", r.ToValue(10)), []interface{}{})
	assertExport(t, a, ints(1, 2, 3, 4))
}

func TestArraySplice(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3)
	assertExport(t, mustCall(t, r, a, "splice", r.ToValue(1), r.ToValue(0), r.ToValue("x")), []interface{}{})
	assertExport(t, a, []interface{}{int64(1), "x", int64(2), int64(3)})

	assertExport(t, mustCall(t, r, a, "splice", r.ToValue(0), r.ToValue(2)), []interface{}{int64(1), "x"})
	assertExport(t, a, ints(2, 3))

	assertExport(t, mustCall(t, r, a, "splice", r.ToValue(-1), r.ToValue(1), r.ToValue(7), r.ToValue(8)), ints(3))
	assertExport(t, a, ints(2, 7, 8))

	assertExport(t, mustCall(t, r, a, "splice", r.ToValue(1)), ints(7, 8))
	assertExport(t, a, ints(2))
	if !a.IsFastArray() {
		t.Fatal("splice left fast storage")
	}
}

func TestArraySpliceReleasesRemoved(t *testing.T) {
	r := newTestRuntime(t)
	o := keepObject(t, r)(r.NewObject())
	a := keepObject(t, r)(r.NewArray(o, o))
	removed, err := callMethod(r, a, "splice", r.ToValue(0), r.ToValue(2))
	if err != nil {
		t.Fatal(err)
	}
	if o.RefCount() != 3 {
		t.Fatalf("Unexpected refcount: %d", o.RefCount())
	}
	r.FreeValue(removed)
	if o.RefCount() != 1 {
		t.Fatalf("Unexpected refcount: %d", o.RefCount())
	}
}

func TestArrayIncludesHoles(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1)
	if err := a.SetIdx(2, r.ToValue(3)); err != nil {
		t.Fatal(err)
	}
	assertExport(t, mustCall(t, r, a, "includes", _undefined), true)
	assertExport(t, mustCall(t, r, a, "indexOf", _undefined), int64(-1))
	assertExport(t, mustCall(t, r, a, "includes", r.ToValue(3), r.ToValue(-1)), true)
	assertExport(t, mustCall(t, r, a, "includes", r.ToValue(1), r.ToValue(1)), false)

	nan := newTestArray(t, r, _NaN)
	assertExport(t, mustCall(t, r, nan, "includes", _NaN), true)
	assertExport(t, mustCall(t, r, nan, "indexOf", _NaN), int64(-1))

	zero := newTestArray(t, r, _negativeZero)
	assertExport(t, mustCall(t, r, zero, "includes", _positiveZero), true)
	assertExport(t, mustCall(t, r, zero, "indexOf", _positiveZero), int64(0))
}

func TestArrayIndexOf(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 1, 2)
	assertExport(t, mustCall(t, r, a, "indexOf", r.ToValue(2)), int64(1))
	assertExport(t, mustCall(t, r, a, "indexOf", r.ToValue(2), r.ToValue(2)), int64(3))
	assertExport(t, mustCall(t, r, a, "indexOf", r.ToValue(2), r.ToValue(-1)), int64(3))
	assertExport(t, mustCall(t, r, a, "indexOf", r.ToValue("2")), int64(-1))
	assertExport(t, mustCall(t, r, a, "lastIndexOf", r.ToValue(1)), int64(2))
	assertExport(t, mustCall(t, r, a, "lastIndexOf", r.ToValue(1), r.ToValue(1)), int64(0))
	assertExport(t, mustCall(t, r, a, "lastIndexOf", r.ToValue(1), r.ToValue(-5)), int64(-1))
}

func TestArrayJoin(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, nil, _undefined, "a", 1.5)
	assertExport(t, mustCall(t, r, a, "join", r.ToValue("-")), "1---a-1.5")
	assertExport(t, mustCall(t, r, a, "join"), "1,,,a,1.5")
	assertExport(t, mustCall(t, r, a, "toString"), "1,,,a,1.5")

	like := newTestObject(t, r)
	if err := like.Set("length", r.ToValue(2)); err != nil {
		t.Fatal(err)
	}
	if err := like.SetIdx(0, r.ToValue("x")); err != nil {
		t.Fatal(err)
	}
	assertExport(t, arrayProtoCall(t, r, "join", like, r.ToValue("+")), "x+")
	assertExport(t, arrayProtoCall(t, r, "toString", like), "[object Object]")
}

func TestArrayToLocaleString(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1234.5, nil, "s")
	assertExport(t, mustCall(t, r, a, "toLocaleString"), "1,234.5,,s")
}

func TestArrayCircularReferenceToString(t *testing.T) {
	r := newTestRuntime(t)
	str := mustGlobal(t, r, "String")
	T := newTestArray(t, r, 1, 2, 3)
	if err := T.SetIdx(42, T); err != nil {
		t.Fatal(err)
	}
	expected := "1,2,3" + strings.Repeat(",", 40)

	assertExport(t, mustCall(t, r, T, "join", r.ToValue(",")), expected)
	assertExport(t, mustCall(t, r, T, "toString"), expected)
	assertExport(t, mustCall(t, r, T, "toLocaleString"), expected)
	s, err := r.Call(str, _undefined, T)
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, s, expected)

	v, err := T.GetIdx(42)
	if err != nil {
		t.Fatal(err)
	}
	defer r.FreeValue(v)
	if v != T {
		t.Fatal("circular element is not the array itself")
	}
}

func TestArrayMultipleCircularReferences(t *testing.T) {
	r := newTestRuntime(t)
	T := newTestArray(t, r, 1, 2, 3)
	for _, i := range []int64{42, 76, 80} {
		if err := T.SetIdx(i, T); err != nil {
			t.Fatal(err)
		}
	}
	s := mustCall(t, r, T, "join").String()
	if n := len(strings.Split(s, ",")); n != 81 {
		t.Fatalf("Unexpected element count: %d", n)
	}
}

func TestArrayNestedCircularReference(t *testing.T) {
	r := newTestRuntime(t)
	A := newTestArray(t, r, 1, 2)
	B := newTestArray(t, r, 3, 4)
	if err := A.SetIdx(2, B); err != nil {
		t.Fatal(err)
	}
	if err := B.SetIdx(2, A); err != nil {
		t.Fatal(err)
	}
	assertExport(t, mustCall(t, r, A, "join"), "1,2,3,4,")
	if len(r.joinStack) != 0 {
		t.Fatalf("join stack not unwound: %d", len(r.joinStack))
	}
}

func TestArrayReverse(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3)
	res := mustCall(t, r, a, "reverse")
	if res != Value(a) {
		t.Fatal("reverse did not return its receiver")
	}
	assertExport(t, a, ints(3, 2, 1))

	holey := newTestArray(t, r, 1)
	if err := holey.SetIdx(2, r.ToValue(3)); err != nil {
		t.Fatal(err)
	}
	mustCall(t, r, holey, "reverse")
	assertExport(t, holey, []interface{}{int64(3), nil, int64(1)})
	if holey.HasOwn("1") {
		t.Fatal("hole filled by reverse")
	}
}

func TestArrayReverseNonOptimisable(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r)
	getter := newTestFunc(t, r, func(FunctionCall) (Value, error) {
		return r.ToValue(42), nil
	})
	setter := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		return nil, a.DefineProperty("0", PropertyDescriptor{
			Value:        r.ToValue(numberArg(call.Argument(0)) + 1),
			Writable:     FLAG_TRUE,
			Configurable: FLAG_TRUE,
		})
	})
	if err := a.DefineAccessorProperty("0", getter, setter, FLAG_TRUE, FLAG_FALSE); err != nil {
		t.Fatal(err)
	}
	if err := a.SetIdx(1, r.ToValue(43)); err != nil {
		t.Fatal(err)
	}
	mustCall(t, r, a, "reverse")
	assertExport(t, a, ints(44, 42))
}

func TestArrayIterationMethods(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3, 4)
	isEven := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		return valueBool(int(numberArg(call.Argument(0)))%2 == 0), nil
	})
	square := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		n := numberArg(call.Argument(0))
		return r.ToValue(n * n), nil
	})
	assertExport(t, mustCall(t, r, a, "map", square), ints(1, 4, 9, 16))
	assertExport(t, mustCall(t, r, a, "filter", isEven), ints(2, 4))
	assertExport(t, mustCall(t, r, a, "every", isEven), false)
	assertExport(t, mustCall(t, r, a, "some", isEven), true)
	assertExport(t, mustCall(t, r, a, "find", isEven), int64(2))
	assertExport(t, mustCall(t, r, a, "findIndex", isEven), int64(1))
	assertExport(t, mustCall(t, r, a, "findLast", isEven), int64(4))
	assertExport(t, mustCall(t, r, a, "findLastIndex", isEven), int64(3))

	none := newTestArray(t, r, 1, 3)
	if v := mustCall(t, r, none, "find", isEven); !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}
	assertExport(t, mustCall(t, r, none, "findIndex", isEven), int64(-1))
	assertExport(t, mustCall(t, r, newTestArray(t, r), "every", isEven), true)

	mustThrow(t, r, KindTypeError, a, "map", r.ToValue(1))
	mustThrow(t, r, KindTypeError, a, "forEach")
}

func TestArrayForEachThisArg(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, "a", "b")
	ctx := keepObject(t, r)(r.NewObject())
	var seen []string
	fn := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		if call.This != ctx {
			t.Fatalf("Unexpected this: %v", call.This)
		}
		if call.Arguments[2] != a {
			t.Fatal("array not passed to the callback")
		}
		seen = append(seen, call.Argument(0).String()+call.Argument(1).String())
		return nil, nil
	})
	if v := mustCall(t, r, a, "forEach", fn, ctx); !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}
	if strings.Join(seen, " ") != "a0 b1" {
		t.Fatalf("Unexpected calls: %v", seen)
	}
}

func TestArrayCallbackMutation(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3)
	calls := 0
	grow := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		calls++
		return callMethod(r, a, "push", r.ToValue(0))
	})
	mustCall(t, r, a, "forEach", grow)
	if calls != 3 {
		t.Fatalf("Unexpected call count: %d", calls)
	}
	if l := r.arrayLength(a); l != 6 {
		t.Fatalf("Unexpected length: %d", l)
	}

	b := newTestArray(t, r, 1, 2, 3)
	shrink := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		if numberArg(call.Argument(1)) == 0 {
			if err := b.Set("length", r.ToValue(1)); err != nil {
				return nil, err
			}
		}
		return r.DupValue(call.Argument(0)), nil
	})
	res := mustCall(t, r, b, "map", shrink).(*Object)
	assertExport(t, res, []interface{}{int64(1), nil, nil})
	if res.HasOwn("1") || res.HasOwn("2") {
		t.Fatal("map visited deleted elements")
	}
}

func TestArrayReduce(t *testing.T) {
	r := newTestRuntime(t)
	sum := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		return r.ToValue(numberArg(call.Argument(0)) + numberArg(call.Argument(1))), nil
	})
	concat := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		return r.ToValue(call.Argument(0).String() + call.Argument(1).String()), nil
	})
	a := newTestArray(t, r, 1, 2, 3)
	assertExport(t, mustCall(t, r, a, "reduce", sum), int64(6))
	assertExport(t, mustCall(t, r, a, "reduce", sum, r.ToValue(10)), int64(16))
	assertExport(t, mustCall(t, r, a, "reduceRight", concat, r.ToValue("x")), "x321")
	assertExport(t, mustCall(t, r, a, "reduceRight", concat), "321")

	empty := newTestArray(t, r)
	ex := mustThrow(t, r, KindTypeError, empty, "reduce", sum)
	if !strings.Contains(ex.Error(), "Reduce of empty array with no initial value") {
		t.Fatalf("Unexpected error: %v", ex)
	}
	assertExport(t, mustCall(t, r, empty, "reduce", sum, r.ToValue(5)), int64(5))
}

func TestArrayFlat(t *testing.T) {
	r := newTestRuntime(t)
	inner := newTestArray(t, r, 3, newTestArray(t, r, 4))
	a := newTestArray(t, r, 1, newTestArray(t, r, 2, inner))
	assertExport(t, mustCall(t, r, a, "flat"), []interface{}{int64(1), int64(2), []interface{}{int64(3), ints(4)}})
	assertExport(t, mustCall(t, r, a, "flat", _positiveInf), ints(1, 2, 3, 4))
	assertExport(t, mustCall(t, r, a, "flat", r.ToValue(0)), []interface{}{int64(1), []interface{}{int64(2), []interface{}{int64(3), ints(4)}}})

	pair := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		n := numberArg(call.Argument(0))
		arr, err := r.NewArray(r.ToValue(n), r.ToValue(n*10))
		if err != nil {
			return nil, err
		}
		return arr, nil
	})
	assertExport(t, mustCall(t, r, newTestArray(t, r, 1, 2), "flatMap", pair), ints(1, 10, 2, 20))
}

func TestArrayAtFillCopyWithin(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3, 4, 5)
	assertExport(t, mustCall(t, r, a, "at", r.ToValue(-1)), int64(5))
	assertExport(t, mustCall(t, r, a, "at", r.ToValue(0)), int64(1))
	if v := mustCall(t, r, a, "at", r.ToValue(5)); !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}

	mustCall(t, r, a, "copyWithin", r.ToValue(0), r.ToValue(3))
	assertExport(t, a, ints(4, 5, 3, 4, 5))

	mustCall(t, r, a, "fill", r.ToValue(0), r.ToValue(1), r.ToValue(-1))
	assertExport(t, a, ints(4, 0, 0, 0, 5))
}

func TestArraySort(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 10, 9, 1)
	if err := a.SetIdx(3, _undefined); err != nil {
		t.Fatal(err)
	}
	if err := a.Set("length", r.ToValue(5)); err != nil {
		t.Fatal(err)
	}
	mustCall(t, r, a, "sort")
	assertExport(t, a, []interface{}{int64(1), int64(10), int64(9), nil, nil})
	if !a.HasOwn("3") || a.HasOwn("4") {
		t.Fatal("undefined and holes not ordered last")
	}

	numeric := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		return r.ToValue(numberArg(call.Argument(0)) - numberArg(call.Argument(1))), nil
	})
	b := newTestArray(t, r, 10, 9, 1, 100, -5)
	mustCall(t, r, b, "sort", numeric)
	assertExport(t, b, ints(-5, 1, 9, 10, 100))

	mustThrow(t, r, KindTypeError, b, "sort", r.ToValue(1))
}

func TestArraySortStable(t *testing.T) {
	r := newTestRuntime(t)
	var items []interface{}
	for i, key := range []int{1, 0, 1, 0, 2, 0} {
		o := newTestObject(t, r)
		if err := o.Set("key", r.ToValue(key)); err != nil {
			t.Fatal(err)
		}
		if err := o.Set("id", r.ToValue(i)); err != nil {
			t.Fatal(err)
		}
		items = append(items, o)
	}
	a := newTestArray(t, r, items...)
	byKey := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		x, _ := call.Argument(0).(*Object).Get("key")
		y, _ := call.Argument(1).(*Object).Get("key")
		defer r.FreeValue(x)
		defer r.FreeValue(y)
		return r.ToValue(x.ToFloat() - y.ToFloat()), nil
	})
	mustCall(t, r, a, "sort", byKey)
	var ids []int
	for _, e := range a.Export().([]interface{}) {
		ids = append(ids, int(e.(map[string]interface{})["id"].(int64)))
	}
	expected := []int{1, 3, 5, 0, 2, 4}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Fatalf("Unexpected order: %v", ids)
		}
	}
}

func TestArraySortComparatorThrows(t *testing.T) {
	r := newTestRuntime(t)
	o := keepObject(t, r)(r.NewObject())
	a := keepObject(t, r)(r.NewArray(o, r.ToValue(2), r.ToValue(1)))
	boom := newTestFunc(t, r, func(FunctionCall) (Value, error) {
		return nil, r.throwRangeError("boom")
	})
	mustThrow(t, r, KindRangeError, a, "sort", boom)
	if o.RefCount() != 2 {
		t.Fatalf("Unexpected refcount: %d", o.RefCount())
	}
}

func TestArraySpecies(t *testing.T) {
	r := newTestRuntime(t)
	ctor := mustGlobal(t, r, "Array")
	species, err := r.getProperty(ctor, r.atoms.symSpecies, ctor)
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, species)
	if species != Value(ctor) {
		t.Fatal("Array[Symbol.species] is not Array")
	}

	a := newTestArray(t, r, 1, 2)
	if err := a.Set("constructor", _undefined); err != nil {
		t.Fatal(err)
	}
	res := mustCall(t, r, a, "slice")
	if !isArray(res) {
		t.Fatal("slice with undefined constructor did not create an Array")
	}

	bad := newTestObject(t, r)
	if err := r.setProperty(bad, r.atoms.symSpecies, r.ToValue(1), bad, true); err != nil {
		t.Fatal(err)
	}
	if err := a.Set("constructor", bad); err != nil {
		t.Fatal(err)
	}
	ex := mustThrow(t, r, KindTypeError, a, "map", newTestFunc(t, r, func(FunctionCall) (Value, error) { return nil, nil }))
	if !strings.Contains(ex.Error(), "Species is not a constructor") {
		t.Fatalf("Unexpected error: %v", ex)
	}
}

func TestArrayGenericReceiver(t *testing.T) {
	r := newTestRuntime(t)
	like := newTestObject(t, r)
	if err := like.Set("length", r.ToValue(3)); err != nil {
		t.Fatal(err)
	}
	for i, v := range []string{"c", "a", "b"} {
		if err := like.SetIdx(int64(i), r.ToValue(v)); err != nil {
			t.Fatal(err)
		}
	}
	arrayProtoCall(t, r, "sort", like)
	assertExport(t, arrayProtoCall(t, r, "join", like), "a,b,c")
	assertExport(t, arrayProtoCall(t, r, "push", like, r.ToValue("d")), int64(4))
	v, _ := like.Get("length")
	assertExport(t, keep(t, r, v), int64(4))
	assertExport(t, arrayProtoCall(t, r, "pop", like), "d")
	assertExport(t, arrayProtoCall(t, r, "includes", like, r.ToValue("b")), true)

	fn, _ := r.realm.arrayProto.Get("push")
	defer r.FreeValue(fn)
	if _, err := r.Call(fn, _undefined); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
}

func BenchmarkArrayPush(b *testing.B) {
	r := newTestRuntime(b)
	a := newTestArray(b, r)
	push, _ := a.Get("push")
	defer r.FreeValue(push)
	one := r.ToValue(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Call(push, a, one); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkArraySort(b *testing.B) {
	r := newTestRuntime(b)
	vals := make([]interface{}, 1000)
	for i := range vals {
		vals[i] = (i * 7919) % 1000
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		a := newTestArray(b, r, vals...)
		b.StartTimer()
		if _, err := callMethod(r, a, "sort"); err != nil {
			b.Fatal(err)
		}
		r.FreeValue(a)
	}
}

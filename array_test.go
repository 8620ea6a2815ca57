package jscore

import (
	"reflect"
	"testing"
)

func TestArray1(t *testing.T) {
	r := newTestRuntime(t)
	a := keepObject(t, r)(r.NewArray())
	if err := a.SetIdx(0, r.ToValue("test")); err != nil {
		t.Fatal(err)
	}
	if l := r.arrayLength(a); l != 1 {
		t.Fatalf("Unexpected length: %d", l)
	}
	if !a.IsFastArray() {
		t.Fatal("append left fast storage")
	}
}

func TestArrayExportProps(t *testing.T) {
	r := newTestRuntime(t)
	arr := keepObject(t, r)(r.NewArray())
	err := arr.DefineDataProperty("0", r.ToValue(true), FLAG_TRUE, FLAG_FALSE, FLAG_TRUE)
	if err != nil {
		t.Fatal(err)
	}
	if arr.IsFastArray() {
		t.Fatal("non-configurable element kept in fast storage")
	}
	actual := arr.Export()
	expected := []interface{}{true}
	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("Expected: %#v, actual: %#v", expected, actual)
	}
}

func TestArrayGrowth(t *testing.T) {
	r := newTestRuntime(t)
	a := keepObject(t, r)(r.NewArray())
	var caps []int
	for i := 0; i < 100; i++ {
		if err := r.addFastArrayElement(a, intToValue(int64(i))); err != nil {
			t.Fatal(err)
		}
		c := cap(a.payload.(*arrayStore).values)
		if n := len(caps); n == 0 || caps[n-1] != c {
			caps = append(caps, c)
		}
	}
	if !reflect.DeepEqual(caps, []int{1, 4, 18, 81, 364}) {
		t.Fatalf("Unexpected capacities: %v", caps)
	}
	v, err := a.GetIdx(99)
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, v, int64(99))
	if l := r.arrayLength(a); l != 100 {
		t.Fatalf("Unexpected length: %d", l)
	}
}

func TestArrayHoleConvertsIrreversibly(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3)
	if err := a.SetIdx(10, r.ToValue(11)); err != nil {
		t.Fatal(err)
	}
	if a.IsFastArray() {
		t.Fatal("array with a hole kept fast storage")
	}
	if l := r.arrayLength(a); l != 11 {
		t.Fatalf("Unexpected length: %d", l)
	}
	if err := a.Set("length", r.ToValue(3)); err != nil {
		t.Fatal(err)
	}
	if a.IsFastArray() {
		t.Fatal("array converted back to fast storage")
	}
	if err := a.SetIdx(3, r.ToValue(4)); err != nil {
		t.Fatal(err)
	}
	assertExport(t, a, []interface{}{int64(1), int64(2), int64(3), int64(4)})
}

func TestArrayDelete(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2)
	deleted, err := a.DeleteIdx(0)
	if err != nil || !deleted {
		t.Fatalf("DeleteIdx: %v, %v", deleted, err)
	}
	v, _ := a.GetIdx(0)
	if !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}
	if l := r.arrayLength(a); l != 2 {
		t.Fatalf("Unexpected length: %d", l)
	}
	assertExport(t, a, []interface{}{nil, int64(2)})
}

func TestArrayDeleteLastStaysFast(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3)
	if _, err := a.DeleteIdx(2); err != nil {
		t.Fatal(err)
	}
	if !a.IsFastArray() {
		t.Fatal("deleting the last element left fast storage")
	}
	if l := r.arrayLength(a); l != 3 {
		t.Fatalf("Unexpected length: %d", l)
	}
	if a.HasOwn("2") {
		t.Fatal("deleted element still present")
	}
}

func TestArrayDeleteNonexisting(t *testing.T) {
	r := newTestRuntime(t)
	if err := r.realm.arrayProto.SetIdx(0, r.ToValue(42)); err != nil {
		t.Fatal(err)
	}
	a := keepObject(t, r)(r.NewArray())
	deleted, err := a.DeleteIdx(0)
	if err != nil || !deleted {
		t.Fatalf("DeleteIdx: %v, %v", deleted, err)
	}
	v, _ := a.GetIdx(0)
	assertExport(t, v, int64(42))
}

func TestArrayProtoProp(t *testing.T) {
	r := newTestRuntime(t)
	err := r.realm.arrayProto.DefineDataProperty("0", r.ToValue(42), FLAG_FALSE, FLAG_TRUE, FLAG_FALSE)
	if err != nil {
		t.Fatal(err)
	}
	a := keepObject(t, r)(r.NewArray())
	if err := r.setIndex(a, 0, r.ToValue(1), false); err != nil {
		t.Fatal(err)
	}
	v, _ := a.GetIdx(0)
	assertExport(t, v, int64(42))
	if err := a.SetIdx(0, r.ToValue(1)); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
}

func TestArraySetLength(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2)
	for _, l := range []Value{r.ToValue("1"), r.ToValue(1.0), r.ToValue(1)} {
		if err := a.Set("length", l); err != nil {
			t.Fatal(err)
		}
	}
	if l := r.arrayLength(a); l != 1 {
		t.Fatalf("Unexpected length: %d", l)
	}
	if err := a.Set("length", r.ToValue(2)); err != nil {
		t.Fatal(err)
	}
	v, _ := a.GetIdx(1)
	if !IsUndefined(v) {
		t.Fatalf("Unexpected value: %v", v)
	}
	if err := a.Set("length", r.ToValue(1.5)); !IsKind(err, KindRangeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
	if err := a.Set("length", r.ToValue(-1)); !IsKind(err, KindRangeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
}

func TestArraySetLengthReleasesElements(t *testing.T) {
	r := newTestRuntime(t)
	o := keepObject(t, r)(r.NewObject())
	a := keepObject(t, r)(r.NewArray(o, o, o))
	if o.RefCount() != 4 {
		t.Fatalf("Unexpected refcount: %d", o.RefCount())
	}
	if err := a.Set("length", r.ToValue(1)); err != nil {
		t.Fatal(err)
	}
	if o.RefCount() != 2 {
		t.Fatalf("Unexpected refcount after truncation: %d", o.RefCount())
	}
}

func TestArraySetLengthWithPropItems(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2, 3, 4)
	if err := a.DefineDataProperty("2", r.ToValue(42), FLAG_FALSE, FLAG_FALSE, FLAG_TRUE); err != nil {
		t.Fatal(err)
	}
	err := a.DefineProperty("length", PropertyDescriptor{Value: r.ToValue(0), Writable: FLAG_FALSE})
	if !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
	if l := r.arrayLength(a); l != 3 {
		t.Fatalf("Unexpected length: %d", l)
	}
}

func TestArrayNonWritableLength(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1)
	if err := a.DefineProperty("length", PropertyDescriptor{Writable: FLAG_FALSE}); err != nil {
		t.Fatal(err)
	}
	if err := a.SetIdx(1, r.ToValue(2)); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
	if err := a.SetIdx(0, r.ToValue(5)); err != nil {
		t.Fatal(err)
	}
	if err := a.DefineProperty("length", PropertyDescriptor{Writable: FLAG_TRUE}); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
	assertExport(t, a, []interface{}{int64(5)})
}

func TestArrayNonExtensible(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1)
	a.PreventExtensions()
	if err := a.SetIdx(1, r.ToValue(2)); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
	if err := a.SetIdx(0, r.ToValue(2)); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkArrayGetIdx(b *testing.B) {
	r := newTestRuntime(b)
	a := newTestArray(b, r, "test")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, _ := a.GetIdx(0)
		r.FreeValue(v)
	}
}

func BenchmarkArrayAppend(b *testing.B) {
	r := newTestRuntime(b)
	a := keepObject(b, r)(r.NewArray())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.addFastArrayElement(a, valueInt(int32(i))); err != nil {
			b.Fatal(err)
		}
	}
}

func TestArrayAppendPrototypeIndex(t *testing.T) {
	r := newTestRuntime(t)
	a := newTestArray(t, r, 1, 2)
	if !r.canAppendFast(a) {
		t.Fatal("plain array cannot append fast")
	}
	if err := a.SetIdx(2, r.ToValue(3)); err != nil {
		t.Fatal(err)
	}
	assertExport(t, a, ints(1, 2, 3))

	proto := newTestObject(t, r, "x")
	if proto.Shape().hasSmallArrayIndex {
		t.Fatal("named property flagged as an index")
	}
	if err := a.SetPrototype(proto); err != nil {
		t.Fatal(err)
	}
	if !r.canAppendFast(a) {
		t.Fatal("prototype without index properties blocks the fast append")
	}

	var got []Value
	setter := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		got = append(got, call.Argument(0))
		return nil, nil
	})
	if err := proto.DefineAccessorProperty("3", _undefined, setter, FLAG_TRUE, FLAG_TRUE); err != nil {
		t.Fatal(err)
	}
	if !proto.Shape().hasSmallArrayIndex {
		t.Fatal("index accessor not flagged on the shape")
	}
	if r.canAppendFast(a) {
		t.Fatal("prototype index setter skipped")
	}
	if err := a.SetIdx(3, r.ToValue(4)); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Export() != int64(4) {
		t.Fatalf("setter not called: %v", got)
	}
	if r.arrayLength(a) != 3 || !a.IsFastArray() {
		t.Fatalf("Unexpected array state: length %d, fast %v", r.arrayLength(a), a.IsFastArray())
	}
	if err := a.Set("3", r.ToValue(5)); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || r.arrayLength(a) != 3 {
		t.Fatalf("named set bypassed the setter: %v, length %d", got, r.arrayLength(a))
	}
}

func TestArrayAppendPrototypeElement(t *testing.T) {
	r := newTestRuntime(t)
	proto := newTestArray(t, r, "p")
	a := newTestArray(t, r)
	if err := a.SetPrototype(proto); err != nil {
		t.Fatal(err)
	}
	if r.canAppendFast(a) {
		t.Fatal("prototype element skipped")
	}
	if err := a.SetIdx(0, r.ToValue("own")); err != nil {
		t.Fatal(err)
	}
	assertExport(t, a, []interface{}{"own"})
	assertExport(t, proto, []interface{}{"p"})
}

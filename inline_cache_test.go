package jscore

import (
	"fmt"
	"testing"
)

func newTestCache(t testing.TB, r *Runtime) *InlineCache {
	t.Helper()
	ic, err := r.NewInlineCache()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ic.Free)
	return ic
}

// shapedObject returns an object whose shape is unique to n and which
// holds "v" at offset 1.
func shapedObject(t testing.TB, r *Runtime, n int) *Object {
	t.Helper()
	return newTestObject(t, r, fmt.Sprintf("k%d", n), "v")
}

func TestInlineCacheSlots(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	s1, err := ic.AddSlot("x")
	if err != nil {
		t.Fatal(err)
	}
	s2, _ := ic.AddSlot("y")
	s3, _ := ic.AddSlot("x")
	if s1 != s3 || s1 == s2 {
		t.Fatalf("Unexpected slots: %d %d %d", s1, s2, s3)
	}
	if ic.Atom(s2) != "y" {
		t.Fatalf("Unexpected atom: %s", ic.Atom(s2))
	}
	for i := 0; i < 100; i++ {
		if _, err := ic.AddSlot(fmt.Sprintf("n%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if s, _ := ic.AddSlot("y"); s != s2 {
		t.Fatalf("slot changed after resize: %d", s)
	}
	if st := ic.Stats(); st.Slots != 102 {
		t.Fatalf("Unexpected stats: %+v", st)
	}
}

func TestInlineCacheHitMiss(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("v")
	o := shapedObject(t, r, 0)
	for i := 0; i < 3; i++ {
		v, err := ic.GetPropertyCached(o, slot)
		if err != nil {
			t.Fatal(err)
		}
		assertExport(t, v, int64(1))
	}
	st := ic.Stats()
	if st.Misses != 1 || st.Hits != 2 {
		t.Fatalf("Unexpected stats: %+v", st)
	}
	off, ok := ic.Lookup(slot, o.Shape())
	if !ok || off != 1 {
		t.Fatalf("Unexpected lookup: %d %v", off, ok)
	}
}

func TestInlineCacheRingLRU(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("v")
	var objs []*Object
	for i := 0; i < 5; i++ {
		objs = append(objs, shapedObject(t, r, i))
	}
	get := func(o *Object) {
		t.Helper()
		v, err := ic.GetPropertyCached(o, slot)
		if err != nil {
			t.Fatal(err)
		}
		assertExport(t, v, int64(1))
	}
	for _, o := range objs[:4] {
		get(o)
	}
	if n := len(ic.Shapes(slot)); n != 4 {
		t.Fatalf("Unexpected ring size: %d", n)
	}
	// objs[1] becomes the least recently used
	get(objs[0])
	get(objs[2])
	get(objs[3])
	get(objs[4])

	if st := ic.Stats(); st.Evictions != 1 {
		t.Fatalf("Unexpected stats: %+v", st)
	}
	cached := make(map[*Shape]bool)
	for _, sh := range ic.Shapes(slot) {
		cached[sh] = true
	}
	if len(cached) != 4 {
		t.Fatalf("Unexpected ring: %v", ic.Shapes(slot))
	}
	if cached[objs[1].Shape()] {
		t.Fatal("least recently used shape was kept")
	}
	for _, i := range []int{0, 2, 3, 4} {
		if !cached[objs[i].Shape()] {
			t.Fatalf("shape %d was evicted", i)
		}
	}
}

func TestInlineCachePolymorphicRotation(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("v")
	var objs []*Object
	for i := 0; i < 5; i++ {
		objs = append(objs, shapedObject(t, r, i))
	}
	get := func(o *Object) {
		t.Helper()
		v, err := ic.GetPropertyCached(o, slot)
		if err != nil {
			t.Fatal(err)
		}
		assertExport(t, v, int64(1))
	}
	for _, o := range objs[:4] {
		get(o)
	}
	warm := ic.Stats()
	if warm.Misses != 4 || warm.Evictions != 0 {
		t.Fatalf("Unexpected warm-up stats: %+v", warm)
	}
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			get(objs[(i*(round+1))%4])
		}
	}
	// every round ends on a different shape; finish in a known order
	for _, o := range objs[:4] {
		get(o)
	}
	st := ic.Stats()
	if st.Misses != warm.Misses || st.Evictions != warm.Evictions {
		t.Fatalf("rotation over %d shapes missed: %+v", 4, st)
	}
	if st.Hits != warm.Hits+24 {
		t.Fatalf("Unexpected hits: %+v", st)
	}

	get(objs[4])
	st = ic.Stats()
	if st.Misses != warm.Misses+1 || st.Evictions != 1 {
		t.Fatalf("Unexpected stats after a fifth shape: %+v", st)
	}
	for _, sh := range ic.Shapes(slot) {
		if sh == objs[0].Shape() {
			t.Fatal("least recently used shape was kept")
		}
	}
	for _, o := range objs[1:] {
		get(o)
	}
	if after := ic.Stats(); after.Misses != st.Misses || after.Evictions != 1 {
		t.Fatalf("survivors were evicted: %+v", after)
	}
}

func TestInlineCacheRetainsShape(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("v")
	o := shapedObject(t, r, 0)
	sh := o.Shape()
	if _, err := ic.GetPropertyCached(o, slot); err != nil {
		t.Fatal(err)
	}
	if sh.RefCount() != 2 {
		t.Fatalf("Unexpected refcount: %d", sh.RefCount())
	}
	if err := o.Set("w", _null); err != nil {
		t.Fatal(err)
	}
	if o.Shape() == sh {
		t.Fatal("cached shape modified in place")
	}
	if sh.PropertyCount() != 2 {
		t.Fatalf("cached shape changed: %d properties", sh.PropertyCount())
	}
	if _, ok := ic.Lookup(slot, o.Shape()); ok {
		t.Fatal("new shape hit before it was cached")
	}
	v, err := ic.GetPropertyCached(o, slot)
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, v, int64(1))
}

func TestInlineCacheSet(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("v")
	o := shapedObject(t, r, 0)
	val := keepObject(t, r)(r.NewObject())
	for i := 0; i < 2; i++ {
		if err := ic.SetPropertyCached(o, slot, val); err != nil {
			t.Fatal(err)
		}
	}
	if val.RefCount() != 2 {
		t.Fatalf("Unexpected refcount: %d", val.RefCount())
	}
	v, _ := o.Get("v")
	keep(t, r, v)
	if v != val {
		t.Fatalf("Unexpected value: %v", v)
	}

	ro := keepObject(t, r)(r.NewObject())
	if err := ro.DefineDataProperty("v", r.ToValue(1), FLAG_FALSE, FLAG_TRUE, FLAG_TRUE); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := ic.SetPropertyCached(ro, slot, r.ToValue(2)); !IsKind(err, KindTypeError) {
			t.Fatalf("Unexpected error: %v", err)
		}
		r.ClearException()
	}
	v, _ = ro.Get("v")
	assertExport(t, v, int64(1))
}

func TestInlineCacheSkipsAccessors(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("v")
	calls := 0
	getter := newTestFunc(t, r, func(FunctionCall) (Value, error) {
		calls++
		return r.ToValue(calls), nil
	})
	o := keepObject(t, r)(r.NewObject())
	if err := o.DefineAccessorProperty("v", getter, nil, FLAG_TRUE, FLAG_TRUE); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		v, err := ic.GetPropertyCached(o, slot)
		if err != nil {
			t.Fatal(err)
		}
		assertExport(t, v, int64(i))
	}
	if len(ic.Shapes(slot)) != 0 {
		t.Fatal("accessor cached")
	}
}

func TestInlineCachePrimitiveReceiver(t *testing.T) {
	r := newTestRuntime(t)
	ic := newTestCache(t, r)
	slot, _ := ic.AddSlot("length")
	v, err := ic.GetPropertyCached(r.ToValue("abc"), slot)
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, v, int64(3))
}

func TestInlineCacheFree(t *testing.T) {
	r := newTestRuntime(t)
	ic, err := r.NewInlineCache()
	if err != nil {
		t.Fatal(err)
	}
	slot, _ := ic.AddSlot("v")
	o := shapedObject(t, r, 0)
	if _, err := ic.GetPropertyCached(o, slot); err != nil {
		t.Fatal(err)
	}
	sh := o.Shape()
	ic.Free()
	if sh.RefCount() != 1 {
		t.Fatalf("Unexpected refcount after Free: %d", sh.RefCount())
	}
}

func TestFunctionBytecodeCacheUsage(t *testing.T) {
	r := newTestRuntime(t)
	b, err := r.NewFunctionBytecode("f", 0, nil, nil, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	defer r.FreeFunctionBytecode(b)
	ic := b.InlineCache()
	slot, _ := ic.AddSlot("v")
	o := shapedObject(t, r, 0)
	if _, err := ic.GetPropertyCached(o, slot); err != nil {
		t.Fatal(err)
	}
	u := r.ComputeMemoryUsage()
	if u.InlineCacheSlots != 1 || u.InlineCacheShapes != 1 {
		t.Fatalf("Unexpected usage: %+v", u)
	}
	// the cached shape is marked through the bytecode and survives
	r.RunGC()
	if _, ok := ic.Lookup(slot, o.Shape()); !ok {
		t.Fatal("cache entry lost after collection")
	}
}

func BenchmarkInlineCacheHit(b *testing.B) {
	r := newTestRuntime(b)
	ic := newTestCache(b, r)
	slot, _ := ic.AddSlot("v")
	o := shapedObject(b, r, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := ic.GetPropertyCached(o, slot)
		if err != nil {
			b.Fatal(err)
		}
		r.FreeValue(v)
	}
}

package jscore

import (
	"testing"
)

func TestGCCollectsCycle(t *testing.T) {
	r := newTestRuntime(t)
	a, err := r.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set("b", b); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("a", a); err != nil {
		t.Fatal(err)
	}
	w := r.NewWeakRef(a)
	r.FreeValue(a)
	r.FreeValue(b)

	v := w.Deref()
	if IsUndefined(v) {
		t.Fatal("cycle was freed before collection")
	}
	r.FreeValue(v)

	before := r.GCStats()
	r.RunGC()
	after := r.GCStats()
	if !IsUndefined(w.Deref()) {
		t.Fatal("cycle survived collection")
	}
	if after.Passes != before.Passes+1 {
		t.Fatalf("Unexpected passes: %d", after.Passes)
	}
	if after.Collected-before.Collected < 2 {
		t.Fatalf("Unexpected collected count: %d", after.Collected-before.Collected)
	}
	if after.Live >= before.Live {
		t.Fatalf("live count did not drop: %d -> %d", before.Live, after.Live)
	}
}

func TestGCKeepsReachable(t *testing.T) {
	r := newTestRuntime(t)
	a := keepObject(t, r)(r.NewObject())
	b, err := r.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Set("b", b); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("a", a); err != nil {
		t.Fatal(err)
	}
	w := r.NewWeakRef(b)
	r.FreeValue(b)
	r.RunGC()
	v := w.Deref()
	if IsUndefined(v) {
		t.Fatal("reachable object was collected")
	}
	r.FreeValue(v)
	if a.RefCount() != 2 {
		t.Fatalf("Unexpected refcount after collection: %d", a.RefCount())
	}
}

func TestGCSelfReferencingArray(t *testing.T) {
	r := newTestRuntime(t)
	arr, err := r.NewArray()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := arr.SetIdx(int64(i), arr); err != nil {
			t.Fatal(err)
		}
	}
	w := r.NewWeakRef(arr)
	r.FreeValue(arr)
	r.RunGC()
	if !IsUndefined(w.Deref()) {
		t.Fatal("array cycle survived collection")
	}
}

func TestGCDeepChain(t *testing.T) {
	r := newTestRuntime(t)
	live := r.GCStats().Live
	head, err := r.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	cur := head
	for i := 0; i < 100000; i++ {
		next, err := r.NewObject()
		if err != nil {
			t.Fatal(err)
		}
		if err := cur.Set("next", next); err != nil {
			t.Fatal(err)
		}
		r.FreeValue(next)
		cur = next
	}
	r.FreeValue(head)
	if n := r.GCStats().Live; n > live {
		t.Fatalf("chain not released: %d live, expected %d", n, live)
	}
}

func TestGCAutomaticTrigger(t *testing.T) {
	makeCycles := func(r *Runtime) {
		for i := 0; i < 2000; i++ {
			o, err := r.NewObject()
			if err != nil {
				t.Fatal(err)
			}
			if err := o.Set("self", o); err != nil {
				t.Fatal(err)
			}
			r.FreeValue(o)
		}
	}

	r := newTestRuntime(t, WithGCThreshold(1024))
	makeCycles(r)
	st := r.GCStats()
	if st.Passes == 0 || st.Collected == 0 {
		t.Fatalf("Unexpected stats: %+v", st)
	}
	if st.Threshold < 1024 {
		t.Fatalf("threshold dropped below the floor: %d", st.Threshold)
	}

	r = newTestRuntime(t, WithGCThreshold(-1))
	makeCycles(r)
	if st := r.GCStats(); st.Passes != 0 {
		t.Fatalf("collection ran while disabled: %+v", st)
	}
}

func TestGCClosureHomeObjectCycle(t *testing.T) {
	r := newTestRuntime(t)
	b, err := r.NewFunctionBytecode("method", 0, []byte{0}, nil, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	f, err := r.NewClosure(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.FreeFunctionBytecode(b)
	o, err := r.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Set("method", f); err != nil {
		t.Fatal(err)
	}
	r.SetHomeObject(f, o)
	w := r.NewWeakRef(o)
	r.FreeValue(f)
	r.FreeValue(o)
	r.RunGC()
	if !IsUndefined(w.Deref()) {
		t.Fatal("closure cycle survived collection")
	}
}

func TestGCVarRefCycle(t *testing.T) {
	r := newTestRuntime(t)
	b, err := r.NewFunctionBytecode("counter", 0, []byte{0}, []Value{r.ToValue("k")}, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	frame := []Value{_undefined}
	vr, err := r.NewVarRef(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	f, err := r.NewClosure(b, []*VarRef{vr})
	if err != nil {
		t.Fatal(err)
	}
	r.FreeFunctionBytecode(b)
	r.SetVarRef(vr, f)
	r.DetachVarRef(vr)
	r.FreeValue(frame[0])
	frame[0] = nil

	v := r.GetVarRef(vr)
	if v != f {
		t.Fatal("var ref does not hold the closure")
	}
	r.FreeValue(v)
	w := r.NewWeakRef(f)
	r.FreeVarRef(vr)
	r.FreeValue(f)
	r.RunGC()
	if !IsUndefined(w.Deref()) {
		t.Fatal("var ref cycle survived collection")
	}
}

func TestAsyncFunctionReleasesFrame(t *testing.T) {
	r := newTestRuntime(t)
	o := keepObject(t, r)(r.NewObject())
	resolve := newTestFunc(t, r, func(FunctionCall) (Value, error) { return nil, nil })
	s, err := r.NewAsyncFunction(o, []Value{o, r.ToValue(1)}, resolve, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.RefCount() != 3 {
		t.Fatalf("Unexpected refcount: %d", o.RefCount())
	}
	if len(s.Frame()) != 2 {
		t.Fatalf("Unexpected frame: %v", s.Frame())
	}
	r.FreeAsyncFunction(s)
	if o.RefCount() != 1 {
		t.Fatalf("Unexpected refcount after free: %d", o.RefCount())
	}
	if resolve.RefCount() != 1 {
		t.Fatalf("Unexpected resolve refcount: %d", resolve.RefCount())
	}
}

func TestDupFreeValue(t *testing.T) {
	r := newTestRuntime(t)
	o, err := r.NewObject()
	if err != nil {
		t.Fatal(err)
	}
	w := r.NewWeakRef(o)
	r.DupValue(o)
	r.FreeValue(o)
	v := w.Deref()
	if IsUndefined(v) {
		t.Fatal("object freed while referenced")
	}
	r.FreeValue(v)
	r.FreeValue(o)
	if !IsUndefined(w.Deref()) {
		t.Fatal("object not freed at zero references")
	}
	// immediates are not counted
	r.FreeValue(r.ToValue(1))
	r.FreeValue(r.ToValue("s"))
}

func BenchmarkRunGC(b *testing.B) {
	r := newTestRuntime(b)
	var objs []*Object
	for i := 0; i < 1000; i++ {
		o, err := r.NewObject()
		if err != nil {
			b.Fatal(err)
		}
		objs = append(objs, o)
	}
	b.Cleanup(func() {
		for _, o := range objs {
			r.FreeValue(o)
		}
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RunGC()
	}
}

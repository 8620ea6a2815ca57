package jscore

import (
	"strings"
	"testing"
)

const (
	opReturnArg byte = iota
	opReturnConst
	opIncrementVar
	opStoreX
)

// testInterpreter runs a one-instruction bytecode.
type testInterpreter struct {
	calls int
}

func (ti *testInterpreter) CallBytecode(r *Runtime, f *Object, b *FunctionBytecode, varRefs []*VarRef, this Value, args []Value, newTarget *Object) (Value, error) {
	ti.calls++
	switch b.Code[0] {
	case opReturnArg:
		if len(args) == 0 {
			return _undefined, nil
		}
		return r.DupValue(args[0]), nil
	case opReturnConst:
		return r.DupValue(b.Const(0)), nil
	case opIncrementVar:
		v := r.GetVarRef(varRefs[0])
		n := v.ToFloat() + 1
		r.FreeValue(v)
		res := floatToValue(n)
		r.SetVarRef(varRefs[0], res)
		return res, nil
	case opStoreX:
		o, ok := this.(*Object)
		if !ok {
			return nil, r.throwTypeError("not an object")
		}
		var arg Value = _undefined
		if len(args) > 0 {
			arg = args[0]
		}
		return _undefined, o.Set("x", arg)
	}
	return nil, r.throwInternalError("bad opcode %d", b.Code[0])
}

func newTestClosure(t testing.TB, r *Runtime, op byte, cpool []Value, varRefs []*VarRef, ctor bool) *Object {
	t.Helper()
	b, err := r.NewFunctionBytecode("f", 1, []byte{op}, cpool, len(varRefs), ctor)
	if err != nil {
		t.Fatal(err)
	}
	defer r.FreeFunctionBytecode(b)
	return keepObject(t, r)(r.NewClosure(b, varRefs))
}

func TestClosureWithoutInterpreter(t *testing.T) {
	r := newTestRuntime(t)
	f := newTestClosure(t, r, opReturnArg, nil, nil, false)
	if _, err := r.Call(f, _undefined); !IsKind(err, KindInternalError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
}

func TestClosureCall(t *testing.T) {
	interp := &testInterpreter{}
	r := newTestRuntime(t, WithInterpreter(interp))
	f := newTestClosure(t, r, opReturnArg, nil, nil, false)
	o := keepObject(t, r)(r.NewObject())
	res, err := r.Call(f, _undefined, o)
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, res)
	if res != o {
		t.Fatalf("Unexpected result: %v", res)
	}

	c := newTestClosure(t, r, opReturnConst, []Value{r.ToValue("k")}, nil, false)
	res, err = r.Call(c, _undefined)
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, res, "k")
	if interp.calls != 2 {
		t.Fatalf("Unexpected call count: %d", interp.calls)
	}
	if f.ClassName() != "Function" {
		t.Fatalf("Unexpected class name: %s", f.ClassName())
	}
	name, _ := f.Get("name")
	assertExport(t, name, "f")
	length, _ := f.Get("length")
	assertExport(t, length, int64(1))
}

func TestClosureVarRef(t *testing.T) {
	r := newTestRuntime(t, WithInterpreter(&testInterpreter{}))
	frame := []Value{r.ToValue(0)}
	vr, err := r.NewVarRef(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := newTestClosure(t, r, opIncrementVar, nil, []*VarRef{vr}, false)
	r.FreeVarRef(vr)

	for i := 1; i <= 2; i++ {
		res, err := r.Call(f, _undefined)
		if err != nil {
			t.Fatal(err)
		}
		assertExport(t, res, int64(i))
	}
	assertExport(t, frame[0], int64(2))

	// once detached, the frame slot and the reference diverge
	r.DetachVarRef(vr)
	frame[0] = r.ToValue(100)
	res, err := r.Call(f, _undefined)
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, res, int64(3))
	assertExport(t, frame[0], int64(100))
}

func TestClosureConstruct(t *testing.T) {
	r := newTestRuntime(t, WithInterpreter(&testInterpreter{}))
	ctor := newTestClosure(t, r, opStoreX, nil, nil, true)
	res, err := r.Construct(ctor, nil, r.ToValue(5))
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, res)
	o := res.(*Object)
	assertExport(t, o, map[string]interface{}{"x": int64(5)})
	proto, _ := ctor.Get("prototype")
	keep(t, r, proto)
	if o.Prototype() != proto {
		t.Fatal("instance prototype is not the constructor's prototype property")
	}

	plain := newTestClosure(t, r, opReturnArg, nil, nil, false)
	if _, err := r.Construct(plain, nil); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
}

func TestFunctionBind(t *testing.T) {
	r := newTestRuntime(t)
	f, err := r.NewFunction("join", 3, func(call FunctionCall) (Value, error) {
		parts := []string{call.This.String()}
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		return r.ToValue(strings.Join(parts, " ")), nil
	})
	keepObject(t, r)(f, err)

	bound := mustCall(t, r, f, "bind", r.ToValue("this"), r.ToValue("a")).(*Object)
	res, err := r.Call(bound, r.ToValue("ignored"), r.ToValue("b"))
	if err != nil {
		t.Fatal(err)
	}
	assertExport(t, res, "this a b")
	name, _ := bound.Get("name")
	assertExport(t, name, "bound join")
	length, _ := bound.Get("length")
	assertExport(t, length, int64(2))
	if f.RefCount() != 2 {
		t.Fatalf("bound function does not hold its target: %d", f.RefCount())
	}

	bind, _ := f.Get("bind")
	keep(t, r, bind)
	if _, err := r.Call(bind, keepObject(t, r)(r.NewObject())); !IsKind(err, KindTypeError) {
		t.Fatalf("Unexpected error: %v", err)
	}
	r.ClearException()
}

func TestFunctionCallApply(t *testing.T) {
	r := newTestRuntime(t)
	sum := newTestFunc(t, r, func(call FunctionCall) (Value, error) {
		total := call.This.ToFloat()
		for _, a := range call.Arguments {
			total += a.ToFloat()
		}
		return r.ToValue(total), nil
	})
	assertExport(t, mustCall(t, r, sum, "call", r.ToValue(1), r.ToValue(2), r.ToValue(3)), int64(6))
	assertExport(t, mustCall(t, r, sum, "apply", r.ToValue(10), newTestArray(t, r, 1, 2)), int64(13))
	assertExport(t, mustCall(t, r, sum, "apply", r.ToValue(10)), int64(10))
	mustThrow(t, r, KindTypeError, sum, "apply", r.ToValue(0), r.ToValue(1))
}

func TestFunctionToString(t *testing.T) {
	r := newTestRuntime(t)
	f, err := r.NewFunction("answer", 0, func(FunctionCall) (Value, error) {
		return r.ToValue(42), nil
	})
	keepObject(t, r)(f, err)
	assertExport(t, mustCall(t, r, f, "toString"), "function answer() { [native code] }")
}

func TestBoundConstructor(t *testing.T) {
	r := newTestRuntime(t)
	ctor := mustGlobal(t, r, "Array")
	bound := mustCall(t, r, ctor, "bind", _null, r.ToValue(1))
	res, err := r.Construct(bound, nil, r.ToValue(2))
	if err != nil {
		t.Fatal(err)
	}
	keep(t, r, res)
	assertExport(t, res, ints(1, 2))
	if !isArray(res) {
		t.Fatal("bound Array did not construct an array")
	}
}

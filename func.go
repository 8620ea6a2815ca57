package jscore

// FunctionCall carries the receiver and arguments of a native call. The
// values are borrowed for the duration of the call.
type FunctionCall struct {
	This      Value
	Arguments []Value
	// NewTarget is set when the function is invoked as a constructor.
	NewTarget *Object
}

// Argument returns argument idx or undefined.
func (f FunctionCall) Argument(idx int) Value {
	if idx < len(f.Arguments) {
		return f.Arguments[idx]
	}
	return _undefined
}

// NativeFunction implements a built-in in Go. The returned value is owned
// by the caller; nil means undefined.
type NativeFunction func(call FunctionCall) (Value, error)

// Interpreter executes bytecode closures. The runtime calls it for every
// invocation of a function created with NewClosure.
type Interpreter interface {
	CallBytecode(r *Runtime, f *Object, b *FunctionBytecode, varRefs []*VarRef, this Value, args []Value, newTarget *Object) (Value, error)
}

type nativeFunc struct {
	fn   NativeFunction
	ctor bool
}

func (d *nativeFunc) markChildren(func(gcObject)) {}
func (d *nativeFunc) finalize(*Runtime)          {}

type closureData struct {
	b          *FunctionBytecode
	varRefs    []*VarRef
	homeObject *Object
}

func (d *closureData) markChildren(mark func(gcObject)) {
	mark(d.b)
	for _, vr := range d.varRefs {
		if vr != nil && vr.detached {
			mark(vr)
		}
	}
	if d.homeObject != nil {
		mark(d.homeObject)
	}
}

func (d *closureData) finalize(r *Runtime) {
	b := d.b
	d.b = nil
	for i, vr := range d.varRefs {
		if vr != nil {
			d.varRefs[i] = nil
			r.freeVarRef(vr)
		}
	}
	if d.homeObject != nil {
		r.freeObjectRef(d.homeObject)
		d.homeObject = nil
	}
	r.freeBytecodeRef(b)
}

type boundFunction struct {
	target *Object
	this   Value
	args   []Value
}

func (d *boundFunction) markChildren(mark func(gcObject)) {
	mark(d.target)
	markValue(d.this, mark)
	for _, v := range d.args {
		markValue(v, mark)
	}
}

func (d *boundFunction) finalize(r *Runtime) {
	r.freeObjectRef(d.target)
	r.FreeValue(d.this)
	for _, v := range d.args {
		r.FreeValue(v)
	}
	d.target, d.this, d.args = nil, nil, nil
}

// FunctionBytecode is a compiled function body. The core only keeps what
// the collector and the inline cache need; Code is opaque to it.
type FunctionBytecode struct {
	gcHeader
	Name          string
	ArgCount      int
	Code          []byte
	cpool         []Value
	closureVars   int
	realm         *Context
	ic            *InlineCache
	isConstructor bool
}

// NewFunctionBytecode registers a compiled function. cpool values are
// copied with new references.
func (r *Runtime) NewFunctionBytecode(name string, argCount int, code []byte, cpool []Value, closureVars int, isConstructor bool) (*FunctionBytecode, error) {
	r.triggerGC(sizeBytecode)
	if err := r.memAlloc(sizeBytecode + int64(len(cpool))*sizeValueSlot + int64(len(code))); err != nil {
		return nil, err
	}
	ic, err := r.newInlineCache()
	if err != nil {
		r.memFree(sizeBytecode + int64(len(cpool))*sizeValueSlot + int64(len(code)))
		return nil, err
	}
	b := &FunctionBytecode{
		Name:          name,
		ArgCount:      argCount,
		Code:          code,
		cpool:         make([]Value, len(cpool)),
		closureVars:   closureVars,
		realm:         r.dupContext(r.realm),
		ic:            ic,
		isConstructor: isConstructor,
	}
	for i, v := range cpool {
		b.cpool[i] = r.DupValue(valueOrUndefined(v))
	}
	r.addGCObject(b, gcObjFunctionBytecode)
	return b, nil
}

// Const returns constant pool entry i without a new reference.
func (b *FunctionBytecode) Const(i int) Value {
	return b.cpool[i]
}

// InlineCache returns the property cache of the function's access sites.
func (b *FunctionBytecode) InlineCache() *InlineCache {
	return b.ic
}

// Realm returns the context the function was compiled in.
func (b *FunctionBytecode) Realm() *Context {
	return b.realm
}

// FreeFunctionBytecode drops a reference obtained from NewFunctionBytecode.
func (r *Runtime) FreeFunctionBytecode(b *FunctionBytecode) {
	r.freeBytecodeRef(b)
}

func (r *Runtime) freeFunctionBytecode(b *FunctionBytecode) {
	cpool := b.cpool
	b.cpool = nil
	for _, v := range cpool {
		r.FreeValue(v)
	}
	if b.ic != nil {
		b.ic.Free()
		b.ic = nil
	}
	if b.realm != nil {
		r.freeContextRef(b.realm)
		b.realm = nil
	}
	r.memFree(sizeBytecode + int64(len(cpool))*sizeValueSlot + int64(len(b.Code)))
	r.releaseGCObject(&b.gcHeader)
}

// VarRef is a closure variable. While the defining frame is active it
// aliases a frame slot; Detach copies the value out when the frame exits.
// Only detached references take part in cycle collection.
type VarRef struct {
	gcHeader
	detached bool
	frame    []Value
	idx      int
	value    Value
}

// NewVarRef returns a reference to frame[idx].
func (r *Runtime) NewVarRef(frame []Value, idx int) (*VarRef, error) {
	if err := r.memAlloc(sizeVarRef); err != nil {
		return nil, err
	}
	vr := &VarRef{frame: frame, idx: idx}
	vr.refCount = 1
	vr.typ = gcObjVarRef
	vr.handle = gcNoHandle
	return vr, nil
}

// GetVarRef returns the current value with a new reference.
func (r *Runtime) GetVarRef(vr *VarRef) Value {
	if vr.detached {
		return r.DupValue(vr.value)
	}
	return r.DupValue(vr.frame[vr.idx])
}

// SetVarRef stores v, which is borrowed.
func (r *Runtime) SetVarRef(vr *VarRef, v Value) {
	v = r.DupValue(v)
	if vr.detached {
		old := vr.value
		vr.value = v
		r.FreeValue(old)
		return
	}
	old := vr.frame[vr.idx]
	vr.frame[vr.idx] = v
	r.FreeValue(old)
}

// DetachVarRef takes a private copy of the frame slot. Called by the
// interpreter when the frame that owns the slot returns.
func (r *Runtime) DetachVarRef(vr *VarRef) {
	if vr.detached {
		return
	}
	vr.value = r.DupValue(valueOrUndefined(vr.frame[vr.idx]))
	vr.frame = nil
	vr.detached = true
	a := &r.gc.arena
	vr.handle = a.alloc(vr)
	a.linkTail(vr.handle, gcListLive)
}

// DupVarRef adds a reference.
func (r *Runtime) DupVarRef(vr *VarRef) *VarRef {
	vr.refCount++
	return vr
}

// FreeVarRef drops a reference.
func (r *Runtime) FreeVarRef(vr *VarRef) {
	r.freeVarRef(vr)
}

func (r *Runtime) freeVarRef(vr *VarRef) {
	if vr.refCount <= 0 {
		panic("jscore: reference count underflow on var ref")
	}
	vr.refCount--
	if vr.refCount != 0 {
		return
	}
	r.memFree(sizeVarRef)
	if vr.detached {
		v := vr.value
		vr.value = nil
		if vr.handle != gcNoHandle {
			r.releaseGCObject(&vr.gcHeader)
		}
		r.FreeValue(v)
	}
	vr.frame = nil
}

// AsyncFunction is the suspended state of an async function: its frame,
// receiver and the resolving functions of its promise.
type AsyncFunction struct {
	gcHeader
	frame   []Value
	this    Value
	resolve *Object
	reject  *Object
}

// NewAsyncFunction captures a suspended frame. All values are copied with
// new references.
func (r *Runtime) NewAsyncFunction(this Value, frame []Value, resolve, reject *Object) (*AsyncFunction, error) {
	r.triggerGC(sizeAsyncFunc)
	if err := r.memAlloc(sizeAsyncFunc + int64(len(frame))*sizeValueSlot); err != nil {
		return nil, err
	}
	s := &AsyncFunction{
		frame: make([]Value, len(frame)),
		this:  r.DupValue(valueOrUndefined(this)),
	}
	for i, v := range frame {
		s.frame[i] = r.DupValue(valueOrUndefined(v))
	}
	if resolve != nil {
		resolve.refCount++
		s.resolve = resolve
	}
	if reject != nil {
		reject.refCount++
		s.reject = reject
	}
	r.addGCObject(s, gcObjAsyncFunction)
	return s, nil
}

// Frame returns the suspended frame. The state owns the slot values.
func (s *AsyncFunction) Frame() []Value {
	return s.frame
}

// FreeAsyncFunction drops a reference obtained from NewAsyncFunction.
func (r *Runtime) FreeAsyncFunction(s *AsyncFunction) {
	r.freeAsyncFunctionRef(s)
}

func (r *Runtime) freeAsyncFunction(s *AsyncFunction) {
	frame := s.frame
	s.frame = nil
	for _, v := range frame {
		r.FreeValue(v)
	}
	r.FreeValue(s.this)
	s.this = nil
	if s.resolve != nil {
		r.freeObjectRef(s.resolve)
		s.resolve = nil
	}
	if s.reject != nil {
		r.freeObjectRef(s.reject)
		s.reject = nil
	}
	r.memFree(sizeAsyncFunc + int64(len(frame))*sizeValueSlot)
	r.releaseGCObject(&s.gcHeader)
}

func (r *Runtime) newNativeFunc(fn NativeFunction, name string, length int, ctor bool) (*Object, error) {
	f, err := r.newObjectProtoClass(r.realm.functionProto, ClassCFunction)
	if err != nil {
		return nil, err
	}
	f.payload = &nativeFunc{fn: fn, ctor: ctor}
	if err := r.initFunctionProps(f, name, length); err != nil {
		r.freeObjectRef(f)
		return nil, err
	}
	return f, nil
}

func (r *Runtime) initFunctionProps(f *Object, name string, length int) error {
	if err := r.definePropertyValue(f, atomLength, intToValue(int64(length)), FlagConfigurable); err != nil {
		return err
	}
	return r.definePropertyValue(f, atomName, newStringValue(name), FlagConfigurable)
}

// NewFunction wraps fn as a callable function object.
func (r *Runtime) NewFunction(name string, length int, fn NativeFunction) (*Object, error) {
	return r.newNativeFunc(fn, name, length, false)
}

// NewConstructor wraps fn as a function that may also be invoked with new.
// A fresh prototype object is attached.
func (r *Runtime) NewConstructor(name string, length int, fn NativeFunction) (*Object, error) {
	f, err := r.newNativeFunc(fn, name, length, true)
	if err != nil {
		return nil, err
	}
	proto, err := r.NewObject()
	if err != nil {
		r.freeObjectRef(f)
		return nil, err
	}
	defer r.freeObjectRef(proto)
	if err := r.linkConstructor(f, proto); err != nil {
		r.freeObjectRef(f)
		return nil, err
	}
	return f, nil
}

func (r *Runtime) linkConstructor(ctor, proto *Object) error {
	if err := r.definePropertyValue(ctor, atomPrototype, proto, flagNone); err != nil {
		return err
	}
	return r.definePropertyValue(proto, atomConstructor, ctor, flagCW)
}

// NewClosure creates a function object running b. The closure takes new
// references to b and to every var ref.
func (r *Runtime) NewClosure(b *FunctionBytecode, varRefs []*VarRef) (*Object, error) {
	f, err := r.newObjectProtoClass(r.realm.functionProto, ClassBytecodeFunction)
	if err != nil {
		return nil, err
	}
	b.refCount++
	d := &closureData{b: b, varRefs: make([]*VarRef, len(varRefs))}
	for i, vr := range varRefs {
		if vr != nil {
			d.varRefs[i] = r.DupVarRef(vr)
		}
	}
	f.payload = d
	if err := r.initFunctionProps(f, b.Name, b.ArgCount); err != nil {
		r.freeObjectRef(f)
		return nil, err
	}
	if b.isConstructor {
		proto, err := r.NewObject()
		if err != nil {
			r.freeObjectRef(f)
			return nil, err
		}
		err = r.definePropertyValue(f, atomPrototype, proto, FlagWritable)
		if err == nil {
			err = r.definePropertyValue(proto, atomConstructor, f, flagCW)
		}
		r.freeObjectRef(proto)
		if err != nil {
			r.freeObjectRef(f)
			return nil, err
		}
	}
	return f, nil
}

// SetHomeObject records the object a method was defined on.
func (r *Runtime) SetHomeObject(f *Object, home *Object) {
	d, ok := f.payload.(*closureData)
	if !ok {
		return
	}
	home.refCount++
	if d.homeObject != nil {
		r.freeObjectRef(d.homeObject)
	}
	d.homeObject = home
}

func (r *Runtime) newBoundFunction(target *Object, this Value, args []Value) (*Object, error) {
	f, err := r.newObjectProtoClass(target.shape.proto, ClassBoundFunction)
	if err != nil {
		return nil, err
	}
	target.refCount++
	d := &boundFunction{
		target: target,
		this:   r.DupValue(valueOrUndefined(this)),
		args:   make([]Value, len(args)),
	}
	for i, v := range args {
		d.args[i] = r.DupValue(v)
	}
	f.payload = d
	return f, nil
}

// callObject invokes f. Arguments are borrowed; the result is owned.
func (r *Runtime) callObject(f *Object, this Value, args []Value) (Value, error) {
	return r.callInternal(f, this, args, nil)
}

func (r *Runtime) callInternal(f *Object, this Value, args []Value, newTarget *Object) (Value, error) {
	if r.callDepth >= r.opts.maxStackDepth {
		return nil, r.throwStackOverflow()
	}
	r.callDepth++
	f.refCount++
	defer func() {
		r.callDepth--
		r.freeObjectRef(f)
	}()
	switch d := f.payload.(type) {
	case *nativeFunc:
		res, err := d.fn(FunctionCall{This: valueOrUndefined(this), Arguments: args, NewTarget: newTarget})
		if err != nil {
			return nil, r.wrapGoError(err)
		}
		return valueOrUndefined(res), nil
	case *closureData:
		if r.opts.interpreter == nil {
			return nil, r.throwInternalError("no interpreter configured to run %s", d.b.Name)
		}
		res, err := r.opts.interpreter.CallBytecode(r, f, d.b, d.varRefs, valueOrUndefined(this), args, newTarget)
		if err != nil {
			return nil, r.wrapGoError(err)
		}
		return valueOrUndefined(res), nil
	case *boundFunction:
		all := args
		if len(d.args) > 0 {
			all = make([]Value, 0, len(d.args)+len(args))
			all = append(all, d.args...)
			all = append(all, args...)
		}
		if newTarget != nil {
			if newTarget == f {
				newTarget = d.target
			}
			return r.constructInternal(d.target, all, newTarget)
		}
		return r.callInternal(d.target, d.this, all, nil)
	}
	return nil, r.throwTypeError("%s is not a function", f.String())
}

// Call invokes fn with the given receiver. Arguments are borrowed; the
// result is owned by the caller.
func (r *Runtime) Call(fn Value, this Value, args ...Value) (Value, error) {
	f, ok := fn.(*Object)
	if !ok || !r.isCallable(f) {
		return nil, r.throwTypeError("%s is not a function", valueOrUndefined(fn).String())
	}
	return r.callObject(f, this, args)
}

// Construct invokes fn as a constructor. newTarget defaults to fn.
func (r *Runtime) Construct(fn Value, newTarget *Object, args ...Value) (Value, error) {
	f, ok := fn.(*Object)
	if !ok || !r.isConstructor(f) {
		return nil, r.throwTypeError("%s is not a constructor", valueOrUndefined(fn).String())
	}
	if newTarget == nil {
		newTarget = f
	}
	return r.constructInternal(f, args, newTarget)
}

func (r *Runtime) constructInternal(f *Object, args []Value, newTarget *Object) (Value, error) {
	switch f.payload.(type) {
	case *nativeFunc:
		res, err := r.callInternal(f, _undefined, args, newTarget)
		if err != nil {
			return nil, err
		}
		if _, ok := res.(*Object); !ok {
			r.FreeValue(res)
			return nil, r.throwTypeError("constructor %s did not return an object", f.String())
		}
		return res, nil
	case *closureData:
		proto, err := r.getPrototypeFromConstructor(newTarget, r.realm.objectProto)
		if err != nil {
			return nil, err
		}
		this, err := r.newObjectProtoClass(proto, ClassObject)
		r.freeObjectRef(proto)
		if err != nil {
			return nil, err
		}
		res, err := r.callInternal(f, this, args, newTarget)
		if err != nil {
			r.freeObjectRef(this)
			return nil, err
		}
		if _, ok := res.(*Object); ok {
			r.freeObjectRef(this)
			return res, nil
		}
		r.FreeValue(res)
		return this, nil
	case *boundFunction:
		return r.callInternal(f, _undefined, args, newTarget)
	}
	return nil, r.throwTypeError("%s is not a constructor", f.String())
}

// getPrototypeFromConstructor reads newTarget.prototype, falling back to
// def when it is not an object. The result is owned.
func (r *Runtime) getPrototypeFromConstructor(newTarget *Object, def *Object) (*Object, error) {
	if newTarget != nil {
		p, err := r.getProperty(newTarget, atomPrototype, newTarget)
		if err != nil {
			return nil, err
		}
		if proto, ok := p.(*Object); ok {
			return proto, nil
		}
		r.FreeValue(p)
	}
	def.refCount++
	return def, nil
}

func (r *Runtime) functionproto_call(call FunctionCall) (Value, error) {
	var args []Value
	if len(call.Arguments) > 1 {
		args = call.Arguments[1:]
	}
	return r.Call(call.This, call.Argument(0), args...)
}

func (r *Runtime) functionproto_apply(call FunctionCall) (Value, error) {
	argArray := call.Argument(1)
	if isNullish(argArray) {
		return r.Call(call.This, call.Argument(0))
	}
	args, err := r.createListFromArrayLike(argArray)
	if err != nil {
		return nil, err
	}
	defer r.freeValues(args)
	return r.Call(call.This, call.Argument(0), args...)
}

func (r *Runtime) functionproto_bind(call FunctionCall) (Value, error) {
	target, ok := call.This.(*Object)
	if !ok || !r.isCallable(target) {
		return nil, r.throwTypeError("Bind must be called on a function")
	}
	var args []Value
	if len(call.Arguments) > 1 {
		args = call.Arguments[1:]
	}
	f, err := r.newBoundFunction(target, call.Argument(0), args)
	if err != nil {
		return nil, err
	}
	length := 0.0
	if lv, ok := r.ownDataProperty(target, atomLength); ok {
		if n, ok := isNumber(lv); ok {
			length = n - float64(len(args))
			if length < 0 {
				length = 0
			}
		}
	}
	name := ""
	if nv, ok := r.ownDataProperty(target, atomName); ok {
		if s, ok := nv.(valueString); ok {
			name = string(s)
		}
	}
	if err := r.definePropertyValue(f, atomLength, floatToValue(length), FlagConfigurable); err != nil {
		r.freeObjectRef(f)
		return nil, err
	}
	if err := r.definePropertyValue(f, atomName, newStringValue("bound "+name), FlagConfigurable); err != nil {
		r.freeObjectRef(f)
		return nil, err
	}
	return f, nil
}

func (r *Runtime) functionproto_toString(call FunctionCall) (Value, error) {
	f, ok := call.This.(*Object)
	if !ok || !r.isCallable(f) {
		return nil, r.throwTypeError("Function.prototype.toString requires that 'this' be a Function")
	}
	name := ""
	if nv, ok := r.ownDataProperty(f, atomName); ok {
		name = nv.String()
	}
	return newStringValue("function " + name + "() { [native code] }"), nil
}

// createListFromArrayLike copies the elements of an array-like. The caller
// owns the returned values.
func (r *Runtime) createListFromArrayLike(v Value) ([]Value, error) {
	o, ok := v.(*Object)
	if !ok {
		return nil, r.throwTypeError("CreateListFromArrayLike called on non-object")
	}
	length, err := r.lengthOfArrayLike(o)
	if err != nil {
		return nil, err
	}
	if length > int64(r.opts.maxStackDepth)*1024 {
		return nil, r.throwRangeError("Too many arguments in function call")
	}
	res := make([]Value, 0, length)
	for i := int64(0); i < length; i++ {
		e, err := r.getIndex(o, i)
		if err != nil {
			r.freeValues(res)
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func (r *Runtime) freeValues(values []Value) {
	for _, v := range values {
		r.FreeValue(v)
	}
}

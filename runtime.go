package jscore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/text/message"
)

// Runtime owns every value it creates: the atom table, the shape table,
// the collector and the global context. A Runtime is not safe for
// concurrent use.
type Runtime struct {
	opts   options
	gc     gcState
	atoms  atomTable
	shapes shapeTable
	realm  *Context

	curException  Value
	inOutOfMemory bool
	callDepth     int
	objectID      uint64

	symbolRegistry map[string]*Symbol
	joinStack      []*Object

	printer *message.Printer
	log     commonlog.Logger
	logs    loggers
}

// Context is a realm: the global object and the intrinsic prototypes.
type Context struct {
	gcHeader
	global        *Object
	objectProto   *Object
	functionProto *Object
	arrayProto    *Object
	errorProto    *Object
	numberProto   *Object
	stringProto   *Object
	booleanProto  *Object
	symbolProto   *Object
	arrayCtor     *Object

	nativeErrorProtos [KindInternalError + 1]*Object
}

func (c *Context) intrinsics() []*Object {
	list := []*Object{
		c.global, c.objectProto, c.functionProto, c.arrayProto, c.errorProto,
		c.numberProto, c.stringProto, c.booleanProto, c.symbolProto, c.arrayCtor,
	}
	list = append(list, c.nativeErrorProtos[:]...)
	res := list[:0]
	for _, o := range list {
		if o != nil {
			res = append(res, o)
		}
	}
	return res
}

func (c *Context) markIntrinsics(mark func(gcObject)) {
	for _, o := range c.intrinsics() {
		mark(o)
	}
}

func (c *Context) errorProtoFor(kind ErrorKind) *Object {
	switch kind {
	case KindOutOfMemory, KindStackOverflow:
		kind = KindInternalError
	}
	if p := c.nativeErrorProtos[kind]; p != nil {
		return p
	}
	return c.errorProto
}

// Global returns the global object without adding a reference.
func (c *Context) Global() *Object {
	return c.global
}

func (r *Runtime) dupContext(c *Context) *Context {
	c.refCount++
	return c
}

func (r *Runtime) freeContextRef(c *Context) {
	if c.refCount <= 0 {
		panic("jscore: reference count underflow on context")
	}
	c.refCount--
	if c.refCount == 0 {
		r.freeContext(c)
	}
}

func (r *Runtime) freeContext(c *Context) {
	objs := c.intrinsics()
	*c = Context{gcHeader: c.gcHeader}
	r.memFree(sizeContext)
	r.releaseGCObject(&c.gcHeader)
	for _, o := range objs {
		r.freeObjectRef(o)
	}
}

// New creates a runtime with its global context.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{opts: defaultOptions}
	for _, o := range opts {
		o.apply(&r.opts)
	}
	r.logs = newLoggers(r.opts.logger)
	r.log = r.logs.runtime
	r.gc.arena.init()
	r.gc.threshold = r.opts.gcThreshold
	r.atoms.init()
	r.shapes.init()
	r.shapes.log = r.logs.shape
	if err := r.initContext(); err != nil {
		r.Close()
		return nil, err
	}
	if r.log.AllowLevel(debugLevel) {
		r.log.Debug("runtime created", "objects", r.gc.arena.count, "allocated", r.gc.allocated)
	}
	return r, nil
}

// builder installs built-in properties, remembering the first failure.
type builder struct {
	r   *Runtime
	err error
}

func (b *builder) value(o *Object, name string, v Value, flags PropFlag) {
	if b.err != nil {
		return
	}
	b.err = b.r.definePropertyValue(o, b.r.atoms.intern(name), v, flags)
}

func (b *builder) method(o *Object, name string, length int, fn NativeFunction) {
	b.methodAtom(o, b.r.atoms.intern(name), name, length, fn)
}

func (b *builder) methodAtom(o *Object, a atom, name string, length int, fn NativeFunction) {
	if b.err != nil {
		return
	}
	f, err := b.r.newNativeFunc(fn, name, length, false)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.r.definePropertyValue(o, a, f, flagCW)
	b.r.freeObjectRef(f)
}

// ctor creates a constructor bound to proto and publishes it on the global
// object. The returned pointer is kept alive by the global object.
func (b *builder) ctor(name string, length int, fn NativeFunction, proto *Object) *Object {
	if b.err != nil {
		return nil
	}
	r := b.r
	f, err := r.newNativeFunc(fn, name, length, true)
	if err != nil {
		b.err = err
		return nil
	}
	defer r.freeObjectRef(f)
	if proto != nil {
		if b.err = r.linkConstructor(f, proto); b.err != nil {
			return nil
		}
	}
	b.value(r.realm.global, name, f, flagCW)
	return f
}

// getter installs a configurable accessor with only a getter, named
// "get <name>".
func (b *builder) getter(o *Object, a atom, name string, fn NativeFunction) {
	if b.err != nil {
		return
	}
	f, err := b.r.newNativeFunc(fn, "get "+name, 0, false)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.r.defineAccessor(o, a, f, nil, FlagConfigurable)
	b.r.freeObjectRef(f)
}

func (b *builder) object(proto *Object, class ClassID) *Object {
	if b.err != nil {
		return nil
	}
	o, err := b.r.newObjectProtoClass(proto, class)
	b.err = err
	return o
}

func (r *Runtime) initContext() error {
	if err := r.memAlloc(sizeContext); err != nil {
		return err
	}
	c := &Context{}
	r.addGCObject(c, gcObjContext)
	r.realm = c

	b := &builder{r: r}
	c.objectProto = b.object(nil, ClassObject)
	c.functionProto = b.object(c.objectProto, ClassCFunction)
	if b.err != nil {
		return b.err
	}
	c.functionProto.payload = &nativeFunc{fn: func(FunctionCall) (Value, error) { return _undefined, nil }}
	if c.arrayProto, b.err = r.newArrayObject(c.objectProto); b.err != nil {
		return b.err
	}
	c.errorProto = b.object(c.objectProto, ClassObject)
	c.symbolProto = b.object(c.objectProto, ClassObject)
	c.global = b.object(c.objectProto, ClassObject)
	if b.err != nil {
		return b.err
	}
	if c.numberProto, b.err = r.newPrimitiveObject(_positiveZero, c.objectProto, ClassNumber); b.err != nil {
		return b.err
	}
	if c.stringProto, b.err = r.newPrimitiveObject(stringEmpty, c.objectProto, ClassString); b.err != nil {
		return b.err
	}
	if c.booleanProto, b.err = r.newPrimitiveObject(valueFalse, c.objectProto, ClassBoolean); b.err != nil {
		return b.err
	}

	b.value(c.global, "globalThis", c.global, flagCW)
	b.value(c.global, "undefined", _undefined, flagNone)
	b.value(c.global, "NaN", _NaN, flagNone)
	b.value(c.global, "Infinity", _positiveInf, flagNone)

	r.initObject(b)
	r.initFunction(b)
	r.initErrors(b)
	r.initArray(b)
	r.initNumber(b)
	r.initString(b)
	r.initBoolean(b)
	r.initSymbol(b)
	r.initJSON(b)
	return b.err
}

// Close releases the global context, collects what remains and reports
// objects that are still alive, which indicates leaked references.
func (r *Runtime) Close() error {
	r.ClearException()
	if c := r.realm; c != nil {
		r.realm = nil
		r.freeContextRef(c)
	}
	r.RunGC()
	live := r.liveGCObjects()
	if len(live) == 0 {
		return nil
	}
	parts := make([]string, 0, len(live))
	for typ, n := range live {
		parts = append(parts, fmt.Sprintf("%d %s", n, typ))
	}
	sort.Strings(parts)
	msg := strings.Join(parts, ", ")
	r.log.Warning("leaked references at close", "live", msg)
	return fmt.Errorf("jscore: leaked references at close: %s", msg)
}

// GlobalObject returns the global object without adding a reference.
func (r *Runtime) GlobalObject() *Object {
	return r.realm.global
}

// Get reads a global variable.
func (r *Runtime) Get(name string) (Value, error) {
	return r.getStr(r.realm.global, name)
}

// Set assigns a global variable.
func (r *Runtime) Set(name string, v Value) error {
	return r.setStr(r.realm.global, name, v)
}

// Atom interns name and returns its stable numeric id, for interpreters
// that key their own tables by property name.
func (r *Runtime) Atom(name string) uint32 {
	return uint32(r.atoms.intern(name))
}

// GetPropertyAtom reads a property by interned id.
func (r *Runtime) GetPropertyAtom(obj Value, a uint32) (Value, error) {
	return r.getProperty(obj, atom(a), obj)
}

// SetPropertyAtom assigns a property by interned id.
func (r *Runtime) SetPropertyAtom(obj Value, a uint32, v Value) error {
	return r.setProperty(obj, atom(a), v, obj, true)
}

// NewSymbol creates a unique symbol.
func (r *Runtime) NewSymbol(desc string) *Symbol {
	return r.atoms.newSymbol(desc)
}

// GCStats reports collector activity.
type GCStats struct {
	Passes    int
	Collected int
	Live      int
	Allocated int64
	Threshold int64
}

// GCStats returns collector counters.
func (r *Runtime) GCStats() GCStats {
	return GCStats{
		Passes:    r.gc.passes,
		Collected: r.gc.collected,
		Live:      r.gc.arena.count,
		Allocated: r.gc.allocated,
		Threshold: r.gc.threshold,
	}
}

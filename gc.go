package jscore

import "fmt"

type gcObjectType uint8

const (
	gcObjObject gcObjectType = iota
	gcObjFunctionBytecode
	gcObjShape
	gcObjVarRef
	gcObjAsyncFunction
	gcObjContext
)

func (t gcObjectType) String() string {
	switch t {
	case gcObjObject:
		return "object"
	case gcObjFunctionBytecode:
		return "function_bytecode"
	case gcObjShape:
		return "shape"
	case gcObjVarRef:
		return "var_ref"
	case gcObjAsyncFunction:
		return "async_function"
	case gcObjContext:
		return "context"
	}
	return fmt.Sprintf("gc_type(%d)", uint8(t))
}

type gcPhase uint8

const (
	gcPhaseNone gcPhase = iota
	gcPhaseDecref
	gcPhaseRemoveCycles
)

// gcHeader is embedded in every structure tracked by the collector.
type gcHeader struct {
	refCount int32
	typ      gcObjectType
	mark     uint8
	handle   int32
}

func (h *gcHeader) header() *gcHeader {
	return h
}

type gcObject interface {
	header() *gcHeader
}

// List heads occupy the first slots of the arena.
const (
	gcListLive int32 = iota
	gcListZeroRef
	gcListTmp
	gcListCount
)

const gcNoHandle = -1

type gcNode struct {
	obj        gcObject
	prev, next int32
}

// gcArena threads GC objects onto circular doubly linked lists of int32
// handles. Insertion and removal are O(1) and a node can move between lists
// while a list is being walked.
type gcArena struct {
	nodes []gcNode
	free  []int32
	count int
}

func (a *gcArena) init() {
	a.nodes = make([]gcNode, gcListCount, 256)
	for i := range a.nodes {
		a.nodes[i].prev = int32(i)
		a.nodes[i].next = int32(i)
	}
	a.free = a.free[:0]
	a.count = 0
}

func (a *gcArena) alloc(obj gcObject) int32 {
	var h int32
	if n := len(a.free); n > 0 {
		h = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		h = int32(len(a.nodes))
		a.nodes = append(a.nodes, gcNode{})
	}
	a.nodes[h] = gcNode{obj: obj, prev: h, next: h}
	a.count++
	return h
}

func (a *gcArena) release(h int32) {
	a.unlink(h)
	a.nodes[h] = gcNode{}
	a.free = append(a.free, h)
	a.count--
}

func (a *gcArena) unlink(h int32) {
	prev, next := a.nodes[h].prev, a.nodes[h].next
	a.nodes[prev].next = next
	a.nodes[next].prev = prev
	a.nodes[h].prev = h
	a.nodes[h].next = h
}

func (a *gcArena) linkTail(h, list int32) {
	tail := a.nodes[list].prev
	a.nodes[h].prev = tail
	a.nodes[h].next = list
	a.nodes[tail].next = h
	a.nodes[list].prev = h
}

func (a *gcArena) move(h, list int32) {
	a.unlink(h)
	a.linkTail(h, list)
}

func (a *gcArena) first(list int32) int32 {
	return a.nodes[list].next
}

func (a *gcArena) empty(list int32) bool {
	return a.nodes[list].next == list
}

func (a *gcArena) each(list int32, f func(gcObject)) {
	for h := a.first(list); h != list; h = a.nodes[h].next {
		f(a.nodes[h].obj)
	}
}

type gcState struct {
	arena     gcArena
	phase     gcPhase
	threshold int64
	allocated int64
	passes    int
	collected int
}

// Estimated allocation sizes used for the trigger threshold, the memory
// limit and memory usage reports.
const (
	sizeObject      = 64
	sizePropSlot    = 24
	sizeShape       = 48
	sizeShapeProp   = 8
	sizeValueSlot   = 16
	sizeBytecode    = 96
	sizeVarRef      = 32
	sizeAsyncFunc   = 64
	sizeContext     = 256
	sizeInlineCache = 48
	sizeICRing      = 72
)

func (r *Runtime) addGCObject(obj gcObject, typ gcObjectType) {
	h := obj.header()
	h.refCount = 1
	h.typ = typ
	h.mark = 0
	h.handle = r.gc.arena.alloc(obj)
	r.gc.arena.linkTail(h.handle, gcListLive)
}

// releaseGCObject unlinks a finalized structure. While cycles are being
// removed, a structure other members still point at stays on the zero-ref
// list until the pass ends.
func (r *Runtime) releaseGCObject(h *gcHeader) {
	a := &r.gc.arena
	a.unlink(h.handle)
	if r.gc.phase == gcPhaseRemoveCycles && h.refCount != 0 {
		a.linkTail(h.handle, gcListZeroRef)
		return
	}
	a.release(h.handle)
	h.handle = gcNoHandle
}

func (r *Runtime) memAlloc(size int64) error {
	if r.opts.memoryLimit > 0 && r.gc.allocated+size > r.opts.memoryLimit && !r.inOutOfMemory {
		return r.throwOutOfMemory()
	}
	r.gc.allocated += size
	return nil
}

func (r *Runtime) memFree(size int64) {
	r.gc.allocated -= size
}

// triggerGC runs a cycle collection when the estimated heap would cross
// the threshold.
func (r *Runtime) triggerGC(size int64) {
	if r.opts.gcThreshold < 0 || r.gc.phase != gcPhaseNone {
		return
	}
	if r.gc.allocated+size <= r.gc.threshold {
		return
	}
	r.RunGC()
	r.gc.threshold = r.gc.allocated + r.gc.allocated>>1
	if r.gc.threshold < r.opts.gcThreshold {
		r.gc.threshold = r.opts.gcThreshold
	}
}

// DupValue retains v and returns it.
func (r *Runtime) DupValue(v Value) Value {
	if o, ok := v.(*Object); ok {
		o.refCount++
	}
	return v
}

// FreeValue releases a reference obtained from DupValue or returned by any
// runtime call. Immediate values, strings and symbols are not counted.
func (r *Runtime) FreeValue(v Value) {
	if o, ok := v.(*Object); ok {
		r.freeObjectRef(o)
	}
}

func (r *Runtime) freeObjectRef(o *Object) {
	if o.refCount <= 0 {
		panic(fmt.Errorf("jscore: reference count underflow on %s object", o.class))
	}
	o.refCount--
	if o.refCount == 0 {
		r.zeroRefCount(o)
	}
}

func (r *Runtime) freeBytecodeRef(b *FunctionBytecode) {
	if b.refCount <= 0 {
		panic("jscore: reference count underflow on function bytecode")
	}
	b.refCount--
	if b.refCount == 0 {
		r.zeroRefCount(b)
	}
}

func (r *Runtime) freeAsyncFunctionRef(s *AsyncFunction) {
	if s.refCount <= 0 {
		panic("jscore: reference count underflow on async function")
	}
	s.refCount--
	if s.refCount == 0 {
		r.zeroRefCount(s)
	}
}

// zeroRefCount queues obj for finalization. Draining happens iteratively
// from the zero-ref list so deep structures never recurse.
func (r *Runtime) zeroRefCount(obj gcObject) {
	if r.gc.phase == gcPhaseRemoveCycles {
		return
	}
	h := obj.header()
	r.gc.arena.move(h.handle, gcListZeroRef)
	h.mark = 1
	if r.gc.phase == gcPhaseNone {
		r.freeZeroRefCount()
	}
}

func (r *Runtime) freeZeroRefCount() {
	a := &r.gc.arena
	r.gc.phase = gcPhaseDecref
	n := 0
	for !a.empty(gcListZeroRef) {
		r.freeGCObject(a.nodes[a.first(gcListZeroRef)].obj)
		n++
	}
	r.gc.phase = gcPhaseNone
	if n > 64 && r.logs.gc.AllowLevel(debugLevel) {
		r.logs.gc.Debugf("drained %d objects from the zero-ref list", n)
	}
}

func (r *Runtime) freeGCObject(obj gcObject) {
	switch o := obj.(type) {
	case *Object:
		r.freeObject(o)
	case *FunctionBytecode:
		r.freeFunctionBytecode(o)
	case *AsyncFunction:
		r.freeAsyncFunction(o)
	default:
		panic(fmt.Errorf("jscore: unexpected %s on the zero-ref list", obj.header().typ))
	}
}

func markValue(v Value, mark func(gcObject)) {
	if o, ok := v.(*Object); ok {
		mark(o)
	}
}

func (r *Runtime) markChildren(obj gcObject, mark func(gcObject)) {
	switch o := obj.(type) {
	case *Object:
		r.markObjectChildren(o, mark)
	case *FunctionBytecode:
		for _, v := range o.cpool {
			markValue(v, mark)
		}
		if o.realm != nil {
			mark(o.realm)
		}
		if o.ic != nil {
			o.ic.markShapes(mark)
		}
	case *VarRef:
		if o.detached {
			markValue(o.value, mark)
		}
	case *AsyncFunction:
		for _, v := range o.frame {
			markValue(v, mark)
		}
		markValue(o.this, mark)
		if o.resolve != nil {
			mark(o.resolve)
		}
		if o.reject != nil {
			mark(o.reject)
		}
	case *Shape:
		if o.proto != nil {
			mark(o.proto)
		}
	case *Context:
		o.markIntrinsics(mark)
	}
}

func (r *Runtime) gcDecrefChild(obj gcObject) {
	h := obj.header()
	if h.refCount <= 0 {
		panic(fmt.Errorf("jscore: %s with no references reached during decref", h.typ))
	}
	h.refCount--
	if h.refCount == 0 && h.mark == 1 {
		r.gc.arena.move(h.handle, gcListTmp)
	}
}

// gcDecref subtracts every internal reference. Whatever reaches zero is only
// referenced from inside the live set and moves to the tmp list.
func (r *Runtime) gcDecref() {
	a := &r.gc.arena
	for h := a.first(gcListLive); h != gcListLive; {
		next := a.nodes[h].next
		obj := a.nodes[h].obj
		r.markChildren(obj, r.gcDecrefChild)
		hdr := obj.header()
		hdr.mark = 1
		if hdr.refCount == 0 {
			a.move(h, gcListTmp)
		}
		h = next
	}
}

func (r *Runtime) gcScanIncrefChild(obj gcObject) {
	h := obj.header()
	h.refCount++
	if h.refCount == 1 {
		// reachable after all: back to the live list, scanned later in this pass
		r.gc.arena.move(h.handle, gcListLive)
		h.mark = 0
	}
}

func (r *Runtime) gcScanIncrefChild2(obj gcObject) {
	obj.header().refCount++
}

// gcScan restores the counts of everything reachable from an external
// reference, then restores the counts inside the garbage set.
func (r *Runtime) gcScan() {
	a := &r.gc.arena
	for h := a.first(gcListLive); h != gcListLive; h = a.nodes[h].next {
		obj := a.nodes[h].obj
		obj.header().mark = 0
		r.markChildren(obj, r.gcScanIncrefChild)
	}
	for h := a.first(gcListTmp); h != gcListTmp; h = a.nodes[h].next {
		r.markChildren(a.nodes[h].obj, r.gcScanIncrefChild2)
	}
}

func (r *Runtime) gcFreeCycles() int {
	a := &r.gc.arena
	freed := 0
	r.gc.phase = gcPhaseRemoveCycles
	for !a.empty(gcListTmp) {
		h := a.first(gcListTmp)
		obj := a.nodes[h].obj
		switch obj.header().typ {
		case gcObjObject, gcObjFunctionBytecode, gcObjAsyncFunction:
			r.freeGCObject(obj)
			freed++
		default:
			// released through the objects that own them
			a.move(h, gcListZeroRef)
		}
	}
	r.gc.phase = gcPhaseNone

	for h := a.first(gcListZeroRef); h != gcListZeroRef; {
		next := a.nodes[h].next
		hdr := a.nodes[h].obj.header()
		switch hdr.typ {
		case gcObjObject, gcObjFunctionBytecode, gcObjAsyncFunction:
			a.release(h)
			hdr.handle = gcNoHandle
		default:
			r.logs.gc.Warningf("%s survived cycle removal", hdr.typ)
			hdr.mark = 0
			a.move(h, gcListLive)
		}
		h = next
	}
	return freed
}

// RunGC performs a full cycle collection: every group of objects that only
// reference each other is finalized.
func (r *Runtime) RunGC() {
	if r.gc.phase != gcPhaseNone {
		return
	}
	r.gcDecref()
	r.gcScan()
	freed := r.gcFreeCycles()
	r.gc.passes++
	r.gc.collected += freed
	if r.logs.gc.AllowLevel(debugLevel) {
		r.logs.gc.Debug("cycle collection", "pass", r.gc.passes, "freed", freed, "live", r.gc.arena.count, "allocated", r.gc.allocated)
	}
}

// liveGCObjects reports how many structures of each type are registered.
func (r *Runtime) liveGCObjects() map[gcObjectType]int {
	counts := make(map[gcObjectType]int)
	r.gc.arena.each(gcListLive, func(obj gcObject) {
		counts[obj.header().typ]++
	})
	return counts
}

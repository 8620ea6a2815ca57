package jscore

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tliron/commonlog"
)

// PropFlag holds the attributes of a property.
type PropFlag uint8

const (
	FlagConfigurable PropFlag = 1 << iota
	FlagWritable
	FlagEnumerable
	flagLength
	flagGetSet
)

const (
	FlagCWE      = FlagConfigurable | FlagWritable | FlagEnumerable
	flagCW       = FlagConfigurable | FlagWritable
	flagNone     = PropFlag(0)
	flagAttrMask = FlagCWE
)

type shapeProperty struct {
	atom  atom
	flags PropFlag
}

// Shape describes the property layout shared by objects built the same way:
// prototype, property names, attributes and order. Objects hold the values.
//
// A shape is only ever modified in place while exactly one reference to it
// exists. Shared shapes, including those retained by inline caches, are
// copied first.
type Shape struct {
	gcHeader
	hash               uint32
	isHashed           bool
	hasSmallArrayIndex bool
	proto              *Object
	props              []shapeProperty
	deleted            int
	index              map[atom]int32
}

const (
	shapeInitialHashBits = 4
	shapeIndexThreshold  = 8
	propInitialSize      = 2
)

func shapeHash(h, v uint32) uint32 {
	return (h + v) * 0x9e370001
}

func shapeInitialHash(proto *Object) uint32 {
	var id uint64
	if proto != nil {
		id = proto.id
	}
	h := shapeHash(1, uint32(id))
	return shapeHash(h, uint32(id>>32))
}

// shapeTable deduplicates published shapes. It belongs to one Runtime.
type shapeTable struct {
	buckets [][]*Shape
	bits    uint
	count   int
	log     commonlog.Logger
}

func (t *shapeTable) init() {
	t.bits = shapeInitialHashBits
	t.buckets = make([][]*Shape, 1<<t.bits)
	t.count = 0
}

func (t *shapeTable) bucket(h uint32) uint32 {
	return h >> (32 - t.bits)
}

func (t *shapeTable) resize(bits uint) {
	old := t.buckets
	t.bits = bits
	t.buckets = make([][]*Shape, 1<<bits)
	for _, b := range old {
		for _, sh := range b {
			i := t.bucket(sh.hash)
			t.buckets[i] = append(t.buckets[i], sh)
		}
	}
	if t.log != nil && t.log.AllowLevel(debugLevel) {
		t.log.Debugf("shape table resized to %d buckets for %d shapes", len(t.buckets), t.count)
	}
}

func (t *shapeTable) link(sh *Shape) {
	if 2*(t.count+1) > len(t.buckets) {
		t.resize(t.bits + 1)
	}
	i := t.bucket(sh.hash)
	t.buckets[i] = append(t.buckets[i], sh)
	t.count++
}

func (t *shapeTable) unlink(sh *Shape) {
	i := t.bucket(sh.hash)
	b := t.buckets[i]
	for j, s := range b {
		if s == sh {
			last := len(b) - 1
			b[j] = b[last]
			b[last] = nil
			t.buckets[i] = b[:last]
			t.count--
			return
		}
	}
	panic("jscore: unlinking a shape that is not in the shape table")
}

// findProto returns the published empty shape for proto, if any.
func (t *shapeTable) findProto(proto *Object) *Shape {
	h := shapeInitialHash(proto)
	for _, sh := range t.buckets[t.bucket(h)] {
		if sh.hash == h && sh.proto == proto && len(sh.props) == 0 {
			return sh
		}
	}
	return nil
}

// findProp returns the published shape equal to sh plus (a, flags).
func (t *shapeTable) findProp(sh *Shape, a atom, flags PropFlag) *Shape {
	h := shapeHash(shapeHash(sh.hash, uint32(a)), uint32(flags))
	n := len(sh.props)
	for _, sh1 := range t.buckets[t.bucket(h)] {
		if sh1.hash != h || sh1.proto != sh.proto || len(sh1.props) != n+1 {
			continue
		}
		match := true
		for i := 0; i < n; i++ {
			if sh1.props[i] != sh.props[i] {
				match = false
				break
			}
		}
		if match && sh1.props[n].atom == a && sh1.props[n].flags == flags {
			return sh1
		}
	}
	return nil
}

func (r *Runtime) newShape(proto *Object, propCap int) (*Shape, error) {
	if err := r.memAlloc(sizeShape + int64(propCap)*sizeShapeProp); err != nil {
		return nil, err
	}
	sh := &Shape{
		proto: proto,
		props: make([]shapeProperty, 0, propCap),
		hash:  shapeInitialHash(proto),
	}
	if proto != nil {
		proto.refCount++
	}
	r.addGCObject(sh, gcObjShape)
	sh.isHashed = true
	r.shapes.link(sh)
	return sh, nil
}

// cloneShape returns a private, unpublished copy of sh1.
func (r *Runtime) cloneShape(sh1 *Shape) (*Shape, error) {
	if err := r.memAlloc(sizeShape + int64(cap(sh1.props))*sizeShapeProp); err != nil {
		return nil, err
	}
	sh := &Shape{
		hash:               sh1.hash,
		hasSmallArrayIndex: sh1.hasSmallArrayIndex,
		proto:              sh1.proto,
		props:              make([]shapeProperty, len(sh1.props), cap(sh1.props)),
		deleted:            sh1.deleted,
	}
	copy(sh.props, sh1.props)
	if sh.proto != nil {
		sh.proto.refCount++
	}
	r.addGCObject(sh, gcObjShape)
	return sh, nil
}

func (r *Runtime) dupShape(sh *Shape) *Shape {
	sh.refCount++
	return sh
}

func (r *Runtime) freeShape(sh *Shape) {
	if sh.refCount <= 0 {
		panic("jscore: reference count underflow on shape")
	}
	sh.refCount--
	if sh.refCount == 0 {
		r.freeShape0(sh)
	}
}

func (r *Runtime) freeShape0(sh *Shape) {
	if sh.isHashed {
		r.shapes.unlink(sh)
		sh.isHashed = false
	}
	r.memFree(sizeShape + int64(cap(sh.props))*sizeShapeProp)
	r.releaseGCObject(&sh.gcHeader)
	proto := sh.proto
	sh.proto = nil
	sh.props = nil
	sh.index = nil
	if proto != nil {
		r.freeObjectRef(proto)
	}
}

func (sh *Shape) buildIndex() {
	sh.index = make(map[atom]int32, len(sh.props))
	for i, pr := range sh.props {
		if pr.atom != atomNull {
			sh.index[pr.atom] = int32(i)
		}
	}
}

// find returns the slot of a in sh, or -1.
func (sh *Shape) find(a atom) (int, *shapeProperty) {
	if sh.index == nil && len(sh.props) > shapeIndexThreshold {
		sh.buildIndex()
	}
	if sh.index != nil {
		if i, ok := sh.index[a]; ok {
			return int(i), &sh.props[i]
		}
		return -1, nil
	}
	for i := range sh.props {
		if sh.props[i].atom == a {
			return i, &sh.props[i]
		}
	}
	return -1, nil
}

// PropertyCount returns the number of live properties described by sh.
func (sh *Shape) PropertyCount() int {
	return len(sh.props) - sh.deleted
}

// IsShared reports whether other objects or caches hold sh.
func (sh *Shape) IsShared() bool {
	return sh.refCount > 1
}

// RefCount returns the current number of references to sh.
func (sh *Shape) RefCount() int {
	return int(sh.refCount)
}

// growProps makes room for n property slots on o.
func (r *Runtime) growProps(o *Object, n int) error {
	c := cap(o.prop)
	if n <= c {
		return nil
	}
	newCap := c * 9 / 2
	if newCap < n {
		newCap = n
	}
	if newCap < propInitialSize {
		newCap = propInitialSize
	}
	if err := r.memAlloc(int64(newCap-c) * sizePropSlot); err != nil {
		return err
	}
	prop := make([]propSlot, len(o.prop), newCap)
	copy(prop, o.prop)
	o.prop = prop
	return nil
}

// addProperty gives o a new property slot for a and returns its index.
// An existing published transition is shared when there is one; a shape
// held elsewhere is copied before it is extended.
func (r *Runtime) addProperty(o *Object, a atom, flags PropFlag) (int, error) {
	sh := o.shape
	if sh.isHashed {
		if next := r.shapes.findProp(sh, a, flags); next != nil {
			n := len(next.props)
			if err := r.growProps(o, n); err != nil {
				return -1, err
			}
			o.shape = r.dupShape(next)
			r.freeShape(sh)
			o.prop = append(o.prop, propSlot{value: _undefined})
			return n - 1, nil
		}
	}
	if sh.refCount != 1 {
		clone, err := r.cloneShape(sh)
		if err != nil {
			return -1, err
		}
		if sh.isHashed {
			clone.isHashed = true
			r.shapes.link(clone)
		}
		o.shape = clone
		r.freeShape(sh)
	}
	if err := r.addShapeProperty(o, a, flags); err != nil {
		return -1, err
	}
	return len(o.shape.props) - 1, nil
}

func (r *Runtime) addShapeProperty(o *Object, a atom, flags PropFlag) error {
	sh := o.shape
	if err := r.growProps(o, len(sh.props)+1); err != nil {
		return err
	}
	if sh.isHashed {
		r.shapes.unlink(sh)
		sh.hash = shapeHash(shapeHash(sh.hash, uint32(a)), uint32(flags))
	}
	oldCap := cap(sh.props)
	sh.props = append(sh.props, shapeProperty{atom: a, flags: flags})
	r.gc.allocated += int64(cap(sh.props)-oldCap) * sizeShapeProp
	if sh.index != nil {
		sh.index[a] = int32(len(sh.props) - 1)
	}
	sh.hasSmallArrayIndex = sh.hasSmallArrayIndex || a.isTaggedInt()
	if sh.isHashed {
		r.shapes.link(sh)
	}
	o.prop = append(o.prop, propSlot{value: _undefined})
	return nil
}

// prepareUpdate gives o a shape it may modify in place.
func (r *Runtime) prepareUpdate(o *Object) error {
	sh := o.shape
	if sh.refCount != 1 {
		clone, err := r.cloneShape(sh)
		if err != nil {
			return err
		}
		o.shape = clone
		r.freeShape(sh)
		return nil
	}
	if sh.isHashed {
		r.shapes.unlink(sh)
		sh.isHashed = false
	}
	return nil
}

// removeShapeProperty deletes slot i of o. The shape must be private.
func (r *Runtime) removeShapeProperty(o *Object, i int) {
	sh := o.shape
	pr := &sh.props[i]
	flags := pr.flags
	if sh.index != nil {
		delete(sh.index, pr.atom)
	}
	pr.atom = atomNull
	pr.flags = flagNone
	slot := o.prop[i]
	o.prop[i] = propSlot{value: _undefined}
	sh.deleted++
	if sh.deleted >= 8 && sh.deleted >= len(sh.props)/2 {
		r.compactProperties(o)
	}
	r.freePropSlot(slot, flags)
}

func (r *Runtime) compactProperties(o *Object) {
	sh := o.shape
	j := 0
	for i := range sh.props {
		if sh.props[i].atom != atomNull {
			sh.props[j] = sh.props[i]
			o.prop[j] = o.prop[i]
			j++
		}
	}
	for i := j; i < len(o.prop); i++ {
		o.prop[i] = propSlot{}
	}
	sh.props = sh.props[:j]
	o.prop = o.prop[:j]
	sh.deleted = 0
	sh.index = nil

	size := j
	if size < propInitialSize {
		size = propInitialSize
	}
	if size < cap(o.prop) {
		r.memFree(int64(cap(o.prop)-size) * sizePropSlot)
		prop := make([]propSlot, j, size)
		copy(prop, o.prop)
		o.prop = prop
	}
	if r.logs.shape.AllowLevel(debugLevel) {
		r.logs.shape.Debugf("compacted object %d to %d properties", o.id, j)
	}
}

// DumpShapes writes the shape table followed by unpublished shapes in use.
func (r *Runtime) DumpShapes(w io.Writer) {
	fmt.Fprintf(w, "%5s %4s %8s %5s %5s %s\n", "SLOT", "REFS", "PROTO", "SIZE", "COUNT", "PROPS")
	dump := func(slot int, sh *Shape) {
		hashed := ' '
		if sh.isHashed {
			hashed = '*'
		}
		var proto uint64
		if sh.proto != nil {
			proto = sh.proto.id
		}
		names := make([]string, 0, len(sh.props))
		for _, pr := range sh.props {
			if pr.atom != atomNull {
				names = append(names, r.atoms.name(pr.atom))
			}
		}
		fmt.Fprintf(w, "%5d %3d%c %8d %5d %5d %s\n", slot, sh.refCount, hashed, proto, cap(sh.props), sh.PropertyCount(), strings.Join(names, " "))
	}
	for i, b := range r.shapes.buckets {
		for _, sh := range b {
			dump(i, sh)
		}
	}
	var private []*Shape
	r.gc.arena.each(gcListLive, func(obj gcObject) {
		if o, ok := obj.(*Object); ok && o.shape != nil && !o.shape.isHashed {
			private = append(private, o.shape)
		}
	})
	sort.Slice(private, func(i, j int) bool {
		return private[i].handle < private[j].handle
	})
	for _, sh := range private {
		dump(-1, sh)
	}
}

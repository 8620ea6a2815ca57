package jscore

import (
	"fmt"
	"sort"
)

// ClassID selects an object's exotic behavior and payload variant.
type ClassID uint8

const (
	ClassObject ClassID = iota + 1
	ClassArray
	ClassError
	ClassNumber
	ClassString
	ClassBoolean
	ClassSymbol
	ClassArguments
	ClassCFunction
	ClassBytecodeFunction
	ClassBoundFunction
	ClassHost
)

func (c ClassID) String() string {
	switch c {
	case ClassObject, ClassHost:
		return classObject
	case ClassArray:
		return classArray
	case ClassError:
		return classError
	case ClassNumber:
		return classNumber
	case ClassString:
		return classString
	case ClassBoolean:
		return classBoolean
	case ClassSymbol:
		return classSymbol
	case ClassArguments:
		return classArguments
	case ClassCFunction, ClassBytecodeFunction, ClassBoundFunction:
		return classFunction
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

const (
	classObject    = "Object"
	classArray     = "Array"
	classFunction  = "Function"
	classNumber    = "Number"
	classString    = "String"
	classBoolean   = "Boolean"
	classSymbol    = "Symbol"
	classError     = "Error"
	classArguments = "Arguments"
)

type propSlot struct {
	value  Value
	getter *Object
	setter *Object
}

// objectPayload is the class-specific part of an object. Each variant
// reports the GC references it owns and releases them when finalized.
type objectPayload interface {
	markChildren(mark func(gcObject))
	finalize(r *Runtime)
}

// Object is a reference counted script object. Its shape describes the
// property names and attributes, prop holds the values in the same order.
type Object struct {
	gcHeader
	runtime    *Runtime
	id         uint64
	class      ClassID
	shape      *Shape
	prop       []propSlot
	extensible bool
	fastArray  bool
	freeMark   bool
	weakRefs   []*WeakRef
	payload    objectPayload
}

type Flag int

const (
	FLAG_NOT_SET Flag = iota
	FLAG_FALSE
	FLAG_TRUE
)

func (f Flag) Bool() bool {
	return f == FLAG_TRUE
}

func ToFlag(b bool) Flag {
	if b {
		return FLAG_TRUE
	}
	return FLAG_FALSE
}

// PropertyDescriptor describes a property for defineProperty. A nil Value,
// Getter or Setter means the field is absent.
type PropertyDescriptor struct {
	Value Value

	Writable, Configurable, Enumerable Flag

	Getter, Setter Value
}

func (p *PropertyDescriptor) IsAccessor() bool {
	return p.Setter != nil || p.Getter != nil
}

func (p *PropertyDescriptor) IsData() bool {
	return p.Value != nil || p.Writable != FLAG_NOT_SET
}

func (p *PropertyDescriptor) IsGeneric() bool {
	return !p.IsAccessor() && !p.IsData()
}

func dataDescriptor(v Value, flags PropFlag) PropertyDescriptor {
	return PropertyDescriptor{
		Value:        v,
		Writable:     ToFlag(flags&FlagWritable != 0),
		Configurable: ToFlag(flags&FlagConfigurable != 0),
		Enumerable:   ToFlag(flags&FlagEnumerable != 0),
	}
}

type primitiveData struct {
	v Value
}

func (d *primitiveData) markChildren(func(gcObject)) {}
func (d *primitiveData) finalize(*Runtime)          {}

// hostData carries an opaque Go value for embedders.
type hostData struct {
	v interface{}
}

func (d *hostData) markChildren(func(gcObject)) {}
func (d *hostData) finalize(*Runtime)          {}

// WeakRef observes an object without keeping it alive.
type WeakRef struct {
	target *Object
}

// NewWeakRef returns a weak reference to o.
func (r *Runtime) NewWeakRef(o *Object) *WeakRef {
	w := &WeakRef{target: o}
	o.weakRefs = append(o.weakRefs, w)
	return w
}

// Deref returns the target with a new reference, or undefined once it has
// been finalized.
func (w *WeakRef) Deref() Value {
	if w.target == nil {
		return _undefined
	}
	w.target.refCount++
	return w.target
}

func (r *Runtime) nextObjectID() uint64 {
	r.objectID++
	return r.objectID
}

// newObjectFromShape takes ownership of sh.
func (r *Runtime) newObjectFromShape(sh *Shape, class ClassID) (*Object, error) {
	size := len(sh.props)
	if size < propInitialSize {
		size = propInitialSize
	}
	if err := r.memAlloc(sizeObject + int64(size)*sizePropSlot); err != nil {
		r.freeShape(sh)
		return nil, err
	}
	o := &Object{
		runtime:    r,
		id:         r.nextObjectID(),
		class:      class,
		shape:      sh,
		extensible: true,
	}
	o.prop = make([]propSlot, len(sh.props), size)
	for i := range o.prop {
		o.prop[i].value = _undefined
	}
	r.addGCObject(o, gcObjObject)
	return o, nil
}

func (r *Runtime) newObjectProtoClass(proto *Object, class ClassID) (*Object, error) {
	r.triggerGC(sizeObject)
	sh := r.shapes.findProto(proto)
	if sh != nil {
		r.dupShape(sh)
	} else {
		var err error
		if sh, err = r.newShape(proto, propInitialSize); err != nil {
			return nil, err
		}
	}
	return r.newObjectFromShape(sh, class)
}

// NewObject returns an empty ordinary object inheriting from
// Object.prototype. The caller owns the returned reference.
func (r *Runtime) NewObject() (*Object, error) {
	return r.newObjectProtoClass(r.realm.objectProto, ClassObject)
}

// NewObjectWithProto returns an empty ordinary object with the given
// prototype, which may be nil.
func (r *Runtime) NewObjectWithProto(proto *Object) (*Object, error) {
	return r.newObjectProtoClass(proto, ClassObject)
}

// NewHostObject wraps a Go value in an ordinary object.
func (r *Runtime) NewHostObject(v interface{}) (*Object, error) {
	o, err := r.newObjectProtoClass(r.realm.objectProto, ClassHost)
	if err != nil {
		return nil, err
	}
	o.payload = &hostData{v: v}
	return o, nil
}

// HostValue returns the Go value of a host object.
func (o *Object) HostValue() (interface{}, bool) {
	if d, ok := o.payload.(*hostData); ok {
		return d.v, true
	}
	return nil, false
}

func (r *Runtime) freePropSlot(slot propSlot, flags PropFlag) {
	if flags&flagGetSet != 0 {
		if slot.getter != nil {
			r.freeObjectRef(slot.getter)
		}
		if slot.setter != nil {
			r.freeObjectRef(slot.setter)
		}
		return
	}
	r.FreeValue(slot.value)
}

func (r *Runtime) freeObject(o *Object) {
	o.freeMark = true
	sh := o.shape
	prop := o.prop
	o.shape = nil
	o.prop = nil
	for i := range sh.props {
		r.freePropSlot(prop[i], sh.props[i].flags)
	}
	r.memFree(sizeObject + int64(cap(prop))*sizePropSlot)
	r.freeShape(sh)
	for _, w := range o.weakRefs {
		w.target = nil
	}
	o.weakRefs = nil
	if p := o.payload; p != nil {
		o.payload = nil
		p.finalize(r)
	}
	r.releaseGCObject(&o.gcHeader)
}

func (r *Runtime) markObjectChildren(o *Object, mark func(gcObject)) {
	sh := o.shape
	mark(sh)
	for i := range sh.props {
		pr := &sh.props[i]
		if pr.atom == atomNull {
			continue
		}
		slot := &o.prop[i]
		if pr.flags&flagGetSet != 0 {
			if slot.getter != nil {
				mark(slot.getter)
			}
			if slot.setter != nil {
				mark(slot.setter)
			}
		} else {
			markValue(slot.value, mark)
		}
	}
	if o.payload != nil {
		o.payload.markChildren(mark)
	}
}

func (r *Runtime) protoOfPrimitive(v Value) (*Object, error) {
	switch v := v.(type) {
	case valueInt, valueFloat:
		return r.realm.numberProto, nil
	case valueString:
		return r.realm.stringProto, nil
	case valueBool:
		return r.realm.booleanProto, nil
	case *Symbol:
		return r.realm.symbolProto, nil
	case *valueBigInt:
		return r.realm.objectProto, nil
	case nil, valueNull, valueUndefined, valueUninitialized:
		return nil, r.throwTypeError("Cannot read properties of %s", valueOrUndefined(v).String())
	}
	return r.realm.objectProto, nil
}

func valueOrUndefined(v Value) Value {
	if v == nil {
		return _undefined
	}
	return v
}

// stringIndex implements the String exotic object's integer properties.
func (r *Runtime) stringIndex(s string, a atom) (Value, bool) {
	if idx, ok := r.atoms.arrayIndex(a); ok {
		if cu := stringCodeUnit(s, int(idx)); cu != "" {
			return newStringValue(cu), true
		}
	}
	return nil, false
}

func (r *Runtime) callGetter(getter *Object, this Value) (Value, error) {
	getter.refCount++
	defer r.freeObjectRef(getter)
	return r.callObject(getter, this, nil)
}

// getProperty implements [[Get]]. The result is owned by the caller.
func (r *Runtime) getProperty(obj Value, a atom, receiver Value) (Value, error) {
	p, ok := obj.(*Object)
	if !ok {
		if s, ok := obj.(valueString); ok {
			if a == atomLength {
				return intToValue(int64(stringLength(string(s)))), nil
			}
			if v, ok := r.stringIndex(string(s), a); ok {
				return v, nil
			}
		}
		var err error
		if p, err = r.protoOfPrimitive(obj); err != nil {
			return nil, err
		}
	}
	for p != nil {
		if p.fastArray && a.isTaggedInt() {
			idx := a.toUint32()
			values := p.payload.(*arrayStore).values
			if idx < uint32(len(values)) {
				return r.DupValue(values[idx]), nil
			}
		} else if p.class == ClassString {
			if v, ok := r.stringIndex(p.payload.(*primitiveData).v.String(), a); ok {
				return v, nil
			}
		}
		if i, pr := p.shape.find(a); pr != nil {
			if pr.flags&flagGetSet != 0 {
				getter := p.prop[i].getter
				if getter == nil {
					return _undefined, nil
				}
				return r.callGetter(getter, receiver)
			}
			return r.DupValue(p.prop[i].value), nil
		}
		p = p.shape.proto
	}
	return _undefined, nil
}

// tryGetIndex reads element idx, distinguishing a missing element from one
// holding undefined.
func (r *Runtime) tryGetIndex(o *Object, idx int64) (Value, bool, error) {
	if o.fastArray && idx >= 0 {
		values := o.payload.(*arrayStore).values
		if idx < int64(len(values)) {
			return r.DupValue(values[idx]), true, nil
		}
	}
	a := r.atoms.fromInt64(idx)
	present, err := r.hasProperty(o, a)
	if err != nil || !present {
		return _undefined, false, err
	}
	v, err := r.getProperty(o, a, o)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Runtime) getIndex(o Value, idx int64) (Value, error) {
	if p, ok := o.(*Object); ok && p.fastArray && idx >= 0 {
		values := p.payload.(*arrayStore).values
		if idx < int64(len(values)) {
			return r.DupValue(values[idx]), nil
		}
	}
	return r.getProperty(o, r.atoms.fromInt64(idx), o)
}

func (r *Runtime) getStr(o Value, name string) (Value, error) {
	return r.getProperty(o, r.atoms.intern(name), o)
}

// ownDataProperty returns a borrowed own data value without running code.
func (r *Runtime) ownDataProperty(o *Object, a atom) (Value, bool) {
	if o.shape == nil {
		return nil, false
	}
	if i, pr := o.shape.find(a); pr != nil && pr.flags&flagGetSet == 0 {
		return o.prop[i].value, true
	}
	return nil, false
}

// getOwnPropertyFlags reports whether o has own property a and its flags.
func (r *Runtime) getOwnPropertyFlags(o *Object, a atom) (PropFlag, bool) {
	if o.fastArray && a.isTaggedInt() {
		if a.toUint32() < uint32(len(o.payload.(*arrayStore).values)) {
			return FlagCWE, true
		}
	} else if o.class == ClassString {
		if _, ok := r.stringIndex(o.payload.(*primitiveData).v.String(), a); ok {
			return FlagEnumerable, true
		}
	}
	if _, pr := o.shape.find(a); pr != nil {
		return pr.flags, true
	}
	return 0, false
}

func (r *Runtime) hasOwnProperty(o *Object, a atom) bool {
	_, ok := r.getOwnPropertyFlags(o, a)
	return ok
}

// hasProperty implements [[HasProperty]] along the prototype chain.
func (r *Runtime) hasProperty(o *Object, a atom) (bool, error) {
	for p := o; p != nil; p = p.shape.proto {
		if r.hasOwnProperty(p, a) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Runtime) reject(throw bool, format string, args ...interface{}) (bool, error) {
	if throw {
		return false, r.throwTypeError(format, args...)
	}
	return false, nil
}

// setProperty implements [[Set]] with receiver this. v is borrowed.
func (r *Runtime) setProperty(obj Value, a atom, v Value, this Value, throw bool) error {
	_, err := r.setPropertyInternal(obj, a, v, this, throw)
	return err
}

func (r *Runtime) setPropertyInternal(obj Value, a atom, v Value, this Value, throw bool) (bool, error) {
	p, ok := obj.(*Object)
	if !ok {
		if isNullish(obj) {
			return false, r.throwTypeError("Cannot set properties of %s (setting '%s')", valueOrUndefined(obj).String(), r.atoms.name(a))
		}
		p, _ = r.protoOfPrimitive(obj)
	} else if p.fastArray && p == this && a.isTaggedInt() && a.toUint32() == uint32(len(p.payload.(*arrayStore).values)) && r.canAppendFast(p) {
		return true, r.addFastArrayElement(p, r.DupValue(v))
	}
	for p1 := p; p1 != nil; p1 = p1.shape.proto {
		if p1.fastArray && a.isTaggedInt() {
			st := p1.payload.(*arrayStore)
			idx := a.toUint32()
			if idx < uint32(len(st.values)) {
				if p1 == this {
					old := st.values[idx]
					st.values[idx] = r.DupValue(v)
					r.FreeValue(old)
					return true, nil
				}
				break
			}
		} else if p1.class == ClassString {
			if _, ok := r.stringIndex(p1.payload.(*primitiveData).v.String(), a); ok {
				return r.reject(throw, "Cannot assign to read only property '%s' of %s", r.atoms.name(a), p1.String())
			}
		}
		i, pr := p1.shape.find(a)
		if pr == nil {
			continue
		}
		if pr.flags&flagGetSet != 0 {
			setter := p1.prop[i].setter
			if setter == nil {
				return r.reject(throw, "Cannot set property %s of %s which has only a getter", r.atoms.name(a), p1.String())
			}
			setter.refCount++
			res, err := r.callObject(setter, this, []Value{v})
			r.freeObjectRef(setter)
			if err != nil {
				return false, err
			}
			r.FreeValue(res)
			return true, nil
		}
		if pr.flags&FlagWritable == 0 {
			return r.reject(throw, "Cannot assign to read only property '%s' of %s", r.atoms.name(a), p1.String())
		}
		if p1 == this {
			if pr.flags&flagLength != 0 {
				return r.setArrayLengthValue(p1, v, throw)
			}
			old := p1.prop[i].value
			p1.prop[i].value = r.DupValue(v)
			r.FreeValue(old)
			return true, nil
		}
		break
	}
	recv, ok := this.(*Object)
	if !ok {
		return r.reject(throw, "Cannot create property '%s' on %s", r.atoms.name(a), valueOrUndefined(this).String())
	}
	if recv != p {
		if flags, ok := r.getOwnPropertyFlags(recv, a); ok {
			if flags&flagGetSet != 0 || flags&FlagWritable == 0 {
				return r.reject(throw, "Cannot assign to read only property '%s'", r.atoms.name(a))
			}
			return r.defineOwnProperty(recv, a, PropertyDescriptor{Value: v}, throw)
		}
	}
	return r.createDataProperty(recv, a, v, throw)
}

func (r *Runtime) setIndex(o Value, idx int64, v Value, throw bool) error {
	if p, ok := o.(*Object); ok && p.fastArray && idx >= 0 {
		st := p.payload.(*arrayStore)
		if idx < int64(len(st.values)) {
			old := st.values[idx]
			st.values[idx] = r.DupValue(v)
			r.FreeValue(old)
			return nil
		}
		if idx == int64(len(st.values)) && r.canAppendFast(p) {
			return r.addFastArrayElement(p, r.DupValue(v))
		}
	}
	return r.setProperty(o, r.atoms.fromInt64(idx), v, o, throw)
}

func (r *Runtime) setStr(o Value, name string, v Value) error {
	return r.setProperty(o, r.atoms.intern(name), v, o, true)
}

// createDataProperty defines a plain writable, enumerable, configurable
// property. v is borrowed.
func (r *Runtime) createDataProperty(o *Object, a atom, v Value, throw bool) (bool, error) {
	if o.fastArray && a.isTaggedInt() && o.extensible {
		st := o.payload.(*arrayStore)
		idx := a.toUint32()
		if idx == uint32(len(st.values)) && (idx < r.arrayLength(o) || o.shape.props[0].flags&FlagWritable != 0) {
			if err := r.addFastArrayElement(o, r.DupValue(v)); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return r.defineOwnProperty(o, a, dataDescriptor(v, FlagCWE), throw)
}

func (r *Runtime) createDataPropertyIdx(o *Object, idx int64, v Value) error {
	_, err := r.createDataProperty(o, r.atoms.fromInt64(idx), v, true)
	return err
}

// definePropertyValue creates or redefines a data property with exactly the
// given attributes.
func (r *Runtime) definePropertyValue(o *Object, a atom, v Value, flags PropFlag) error {
	_, err := r.defineOwnProperty(o, a, dataDescriptor(v, flags), true)
	return err
}

func (r *Runtime) defineAccessor(o *Object, a atom, getter, setter *Object, flags PropFlag) error {
	desc := PropertyDescriptor{
		Configurable: ToFlag(flags&FlagConfigurable != 0),
		Enumerable:   ToFlag(flags&FlagEnumerable != 0),
	}
	desc.Getter, desc.Setter = _undefined, _undefined
	if getter != nil {
		desc.Getter = getter
	}
	if setter != nil {
		desc.Setter = setter
	}
	_, err := r.defineOwnProperty(o, a, desc, true)
	return err
}

// defineOwnProperty implements [[DefineOwnProperty]]. Values in desc are
// borrowed.
func (r *Runtime) defineOwnProperty(o *Object, a atom, desc PropertyDescriptor, throw bool) (bool, error) {
	switch o.class {
	case ClassArray:
		if a == atomLength {
			return r.defineArrayLength(o, desc, throw)
		}
		if idx, ok := r.atoms.arrayIndex(a); ok {
			if o.fastArray {
				if handled, err := r.defineFastArrayIndex(o, idx, &desc); handled || err != nil {
					return err == nil, err
				}
				if err := r.convertFastArrayToArray(o); err != nil {
					return false, err
				}
			}
			length := r.arrayLength(o)
			if idx >= length && o.shape.props[0].flags&FlagWritable == 0 {
				return r.reject(throw, "Cannot add property %d, object length is not writable", idx)
			}
			ok, err := r.defineOrdinary(o, a, &desc, throw)
			if ok && idx >= length {
				o.prop[0].value = intToValue(int64(idx) + 1)
			}
			return ok, err
		}
	case ClassString:
		if _, ok := r.stringIndex(o.payload.(*primitiveData).v.String(), a); ok {
			return r.reject(throw, "Cannot redefine property: %s", r.atoms.name(a))
		}
	}
	return r.defineOrdinary(o, a, &desc, throw)
}

func asObjectOrNil(v Value) *Object {
	o, _ := v.(*Object)
	return o
}

func (r *Runtime) defineOrdinary(o *Object, a atom, desc *PropertyDescriptor, throw bool) (bool, error) {
	if desc.IsAccessor() {
		for _, f := range []Value{desc.Getter, desc.Setter} {
			if f != nil && !IsUndefined(f) && !r.isCallable(f) {
				return false, r.throwTypeError("Getter or setter must be a function: %s", f.String())
			}
		}
	}
	i, pr := o.shape.find(a)
	if pr == nil {
		if !o.extensible {
			return r.reject(throw, "Cannot define property %s, object is not extensible", r.atoms.name(a))
		}
		var flags PropFlag
		if desc.Configurable == FLAG_TRUE {
			flags |= FlagConfigurable
		}
		if desc.Enumerable == FLAG_TRUE {
			flags |= FlagEnumerable
		}
		if desc.IsAccessor() {
			flags |= flagGetSet
		} else if desc.Writable == FLAG_TRUE {
			flags |= FlagWritable
		}
		idx, err := r.addProperty(o, a, flags)
		if err != nil {
			return false, err
		}
		slot := &o.prop[idx]
		if desc.IsAccessor() {
			if g := asObjectOrNil(desc.Getter); g != nil {
				g.refCount++
				slot.getter = g
			}
			if s := asObjectOrNil(desc.Setter); s != nil {
				s.refCount++
				slot.setter = s
			}
		} else if desc.Value != nil {
			slot.value = r.DupValue(desc.Value)
		}
		return true, nil
	}

	flags := pr.flags
	slot := &o.prop[i]
	if flags&FlagConfigurable == 0 {
		if desc.Configurable == FLAG_TRUE {
			goto Reject
		}
		if desc.Enumerable != FLAG_NOT_SET && desc.Enumerable.Bool() != (flags&FlagEnumerable != 0) {
			goto Reject
		}
		if desc.IsAccessor() {
			if flags&flagGetSet == 0 {
				goto Reject
			}
			if desc.Getter != nil && asObjectOrNil(desc.Getter) != slot.getter {
				goto Reject
			}
			if desc.Setter != nil && asObjectOrNil(desc.Setter) != slot.setter {
				goto Reject
			}
		} else if desc.IsData() {
			if flags&flagGetSet != 0 {
				goto Reject
			}
			if flags&FlagWritable == 0 {
				if desc.Writable == FLAG_TRUE {
					goto Reject
				}
				if desc.Value != nil && !desc.Value.SameAs(slot.value) {
					goto Reject
				}
			}
		}
	}

	{
		newFlags := flags
		if desc.IsAccessor() && flags&flagGetSet == 0 {
			newFlags = (flags & (FlagConfigurable | FlagEnumerable)) | flagGetSet
		} else if desc.IsData() && flags&flagGetSet != 0 {
			newFlags = flags & (FlagConfigurable | FlagEnumerable)
		}
		if desc.Configurable != FLAG_NOT_SET {
			newFlags = newFlags&^FlagConfigurable | boolFlag(desc.Configurable.Bool(), FlagConfigurable)
		}
		if desc.Enumerable != FLAG_NOT_SET {
			newFlags = newFlags&^FlagEnumerable | boolFlag(desc.Enumerable.Bool(), FlagEnumerable)
		}
		if newFlags&flagGetSet == 0 && desc.Writable != FLAG_NOT_SET {
			newFlags = newFlags&^FlagWritable | boolFlag(desc.Writable.Bool(), FlagWritable)
		}
		if newFlags != flags {
			if err := r.prepareUpdate(o); err != nil {
				return false, err
			}
			o.shape.props[i].flags = newFlags
			slot = &o.prop[i]
		}

		old := *slot
		if newFlags&flagGetSet != 0 {
			getter, setter := old.getter, old.setter
			if flags&flagGetSet == 0 {
				getter, setter = nil, nil
			}
			if desc.Getter != nil {
				getter = asObjectOrNil(desc.Getter)
			}
			if desc.Setter != nil {
				setter = asObjectOrNil(desc.Setter)
			}
			if getter != nil {
				getter.refCount++
			}
			if setter != nil {
				setter.refCount++
			}
			*slot = propSlot{value: _undefined, getter: getter, setter: setter}
		} else {
			var v Value = _undefined
			if flags&flagGetSet == 0 {
				v = r.DupValue(old.value)
			}
			if desc.Value != nil {
				r.FreeValue(v)
				v = r.DupValue(desc.Value)
			}
			*slot = propSlot{value: v}
		}
		r.freePropSlot(old, flags)
		return true, nil
	}

Reject:
	return r.reject(throw, "Cannot redefine property: %s", r.atoms.name(a))
}

func boolFlag(b bool, f PropFlag) PropFlag {
	if b {
		return f
	}
	return 0
}

// deleteProperty implements [[Delete]].
func (r *Runtime) deleteProperty(o *Object, a atom) (bool, error) {
	if o.fastArray && a.isTaggedInt() {
		st := o.payload.(*arrayStore)
		idx := a.toUint32()
		n := uint32(len(st.values))
		if idx >= n {
			return true, nil
		}
		if idx == n-1 {
			old := st.values[idx]
			st.values[idx] = nil
			st.values = st.values[:idx]
			r.FreeValue(old)
			return true, nil
		}
		if err := r.convertFastArrayToArray(o); err != nil {
			return false, err
		}
	} else if o.class == ClassString {
		if _, ok := r.stringIndex(o.payload.(*primitiveData).v.String(), a); ok {
			return false, nil
		}
	}
	i, pr := o.shape.find(a)
	if pr == nil {
		return true, nil
	}
	if pr.flags&FlagConfigurable == 0 {
		return false, nil
	}
	if err := r.prepareUpdate(o); err != nil {
		return false, err
	}
	r.removeShapeProperty(o, i)
	return true, nil
}

func (r *Runtime) deletePropertyOrThrow(o *Object, a atom) error {
	ok, err := r.deleteProperty(o, a)
	if err != nil {
		return err
	}
	if !ok {
		return r.throwTypeError("Cannot delete property '%s' of %s", r.atoms.name(a), o.String())
	}
	return nil
}

const (
	keysStrings = 1 << iota
	keysSymbols
	keysEnumOnly
)

// ownKeys lists own property keys: array indices ascending, then strings
// in insertion order, then symbols in insertion order.
func (r *Runtime) ownKeys(o *Object, kind int) []atom {
	var indices []uint32
	var strs, syms []atom
	if kind&keysStrings != 0 {
		if o.fastArray {
			n := len(o.payload.(*arrayStore).values)
			indices = make([]uint32, 0, n)
			for i := 0; i < n; i++ {
				indices = append(indices, uint32(i))
			}
		} else if o.class == ClassString {
			n := stringLength(o.payload.(*primitiveData).v.String())
			for i := 0; i < n; i++ {
				indices = append(indices, uint32(i))
			}
		}
	}
	sorted := true
	for _, pr := range o.shape.props {
		if pr.atom == atomNull {
			continue
		}
		if kind&keysEnumOnly != 0 && pr.flags&FlagEnumerable == 0 {
			continue
		}
		if r.atoms.isSymbol(pr.atom) {
			if kind&keysSymbols != 0 {
				syms = append(syms, pr.atom)
			}
			continue
		}
		if kind&keysStrings == 0 {
			continue
		}
		if idx, ok := r.atoms.arrayIndex(pr.atom); ok {
			if n := len(indices); n > 0 && indices[n-1] > idx {
				sorted = false
			}
			indices = append(indices, idx)
			continue
		}
		strs = append(strs, pr.atom)
	}
	if !sorted {
		sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	}
	keys := make([]atom, 0, len(indices)+len(strs)+len(syms))
	for _, idx := range indices {
		keys = append(keys, r.atoms.fromInt64(int64(idx)))
	}
	keys = append(keys, strs...)
	return append(keys, syms...)
}

func (r *Runtime) preventExtensions(o *Object) {
	o.extensible = false
}

// setPrototype implements [[SetPrototypeOf]].
func (r *Runtime) setPrototype(o *Object, proto *Object, throw bool) (bool, error) {
	sh := o.shape
	if sh.proto == proto {
		return true, nil
	}
	if !o.extensible {
		return r.reject(throw, "%s is not extensible", o.String())
	}
	for p := proto; p != nil; p = p.shape.proto {
		if p == o {
			return r.reject(throw, "Cyclic __proto__ value")
		}
	}
	if err := r.prepareUpdate(o); err != nil {
		return false, err
	}
	sh = o.shape
	old := sh.proto
	if proto != nil {
		proto.refCount++
	}
	sh.proto = proto
	if old != nil {
		r.freeObjectRef(old)
	}
	return true, nil
}

// Object methods for embedders. Returned values are owned by the caller;
// arguments are borrowed.

func (o *Object) ToBoolean() bool {
	return true
}

func (o *Object) ToFloat() float64 {
	return _NaN.ToFloat()
}

func (o *Object) String() string {
	return "[object " + o.ClassName() + "]"
}

func (o *Object) SameAs(other Value) bool {
	return o.StrictEquals(other)
}

func (o *Object) StrictEquals(other Value) bool {
	o1, ok := other.(*Object)
	return ok && o == o1
}

// Export converts o to a Go value: arrays to []interface{}, other objects
// to map[string]interface{} of their own enumerable data properties.
// Objects nested deeper than the runtime's stack depth limit are left as
// *Object.
func (o *Object) Export() interface{} {
	return o.export(make(map[*Object]interface{}), 0)
}

func (o *Object) export(seen map[*Object]interface{}, depth int) interface{} {
	if v, ok := seen[o]; ok {
		return v
	}
	r := o.runtime
	exportValue := func(v Value) interface{} {
		if p, ok := v.(*Object); ok {
			if depth >= r.opts.maxStackDepth {
				return p
			}
			return p.export(seen, depth+1)
		}
		return valueOrUndefined(v).Export()
	}
	switch d := o.payload.(type) {
	case *primitiveData:
		return d.v.Export()
	case *hostData:
		return d.v
	}
	if o.class == ClassArray {
		n := r.arrayLength(o)
		res := make([]interface{}, n)
		seen[o] = res
		for i := uint32(0); i < n; i++ {
			if v, ok := o.ownElement(i); ok {
				res[i] = exportValue(v)
			}
		}
		return res
	}
	res := make(map[string]interface{})
	seen[o] = res
	for _, a := range r.ownKeys(o, keysStrings|keysEnumOnly) {
		if v, ok := r.ownDataProperty(o, a); ok {
			res[r.atoms.name(a)] = exportValue(v)
		}
	}
	return res
}

// ownElement returns a borrowed own element without running code.
func (o *Object) ownElement(i uint32) (Value, bool) {
	if o.fastArray {
		values := o.payload.(*arrayStore).values
		if i < uint32(len(values)) {
			return values[i], true
		}
		return nil, false
	}
	return o.runtime.ownDataProperty(o, o.runtime.atoms.fromInt64(int64(i)))
}

// ClassName returns the name used by Object.prototype.toString.
func (o *Object) ClassName() string {
	return o.class.String()
}

// Class returns the object's class id.
func (o *Object) Class() ClassID {
	return o.class
}

// Shape returns the current shape. It changes as properties are added.
func (o *Object) Shape() *Shape {
	return o.shape
}

// RefCount returns the current number of references to o.
func (o *Object) RefCount() int {
	return int(o.refCount)
}

// IsFastArray reports whether o still uses contiguous element storage.
func (o *Object) IsFastArray() bool {
	return o.fastArray
}

// IsExtensible reports whether new properties may be added.
func (o *Object) IsExtensible() bool {
	return o.extensible
}

// PreventExtensions makes o non-extensible.
func (o *Object) PreventExtensions() {
	o.runtime.preventExtensions(o)
}

// Prototype returns o's prototype without adding a reference.
func (o *Object) Prototype() *Object {
	return o.shape.proto
}

// SetPrototype replaces o's prototype.
func (o *Object) SetPrototype(proto *Object) error {
	_, err := o.runtime.setPrototype(o, proto, true)
	return err
}

// Get returns the named property.
func (o *Object) Get(name string) (Value, error) {
	return o.runtime.getStr(o, name)
}

// GetIdx returns element idx.
func (o *Object) GetIdx(idx int64) (Value, error) {
	return o.runtime.getIndex(o, idx)
}

// Set assigns the named property, throwing on failure.
func (o *Object) Set(name string, v Value) error {
	return o.runtime.setStr(o, name, v)
}

// SetIdx assigns element idx.
func (o *Object) SetIdx(idx int64, v Value) error {
	return o.runtime.setIndex(o, idx, v, true)
}

// Has reports whether the property exists on o or its prototype chain.
func (o *Object) Has(name string) (bool, error) {
	return o.runtime.hasProperty(o, o.runtime.atoms.intern(name))
}

// HasOwn reports whether o itself has the property.
func (o *Object) HasOwn(name string) bool {
	return o.runtime.hasOwnProperty(o, o.runtime.atoms.intern(name))
}

// Delete removes the property and reports whether it is gone.
func (o *Object) Delete(name string) (bool, error) {
	return o.runtime.deleteProperty(o, o.runtime.atoms.intern(name))
}

// DeleteIdx removes element idx.
func (o *Object) DeleteIdx(idx int64) (bool, error) {
	return o.runtime.deleteProperty(o, o.runtime.atoms.fromInt64(idx))
}

// Keys returns the own enumerable string keys in property order.
func (o *Object) Keys() []string {
	r := o.runtime
	atoms := r.ownKeys(o, keysStrings|keysEnumOnly)
	keys := make([]string, len(atoms))
	for i, a := range atoms {
		keys[i] = r.atoms.name(a)
	}
	return keys
}

// DefineDataProperty defines or redefines a data property.
func (o *Object) DefineDataProperty(name string, value Value, writable, configurable, enumerable Flag) error {
	_, err := o.runtime.defineOwnProperty(o, o.runtime.atoms.intern(name), PropertyDescriptor{
		Value:        value,
		Writable:     writable,
		Configurable: configurable,
		Enumerable:   enumerable,
	}, true)
	return err
}

// DefineAccessorProperty defines or redefines an accessor property. Pass
// undefined to clear a getter or setter, nil to leave it unchanged.
func (o *Object) DefineAccessorProperty(name string, getter, setter Value, configurable, enumerable Flag) error {
	_, err := o.runtime.defineOwnProperty(o, o.runtime.atoms.intern(name), PropertyDescriptor{
		Getter:       getter,
		Setter:       setter,
		Configurable: configurable,
		Enumerable:   enumerable,
	}, true)
	return err
}

// DefineProperty applies a full descriptor to the named property.
func (o *Object) DefineProperty(name string, desc PropertyDescriptor) error {
	_, err := o.runtime.defineOwnProperty(o, o.runtime.atoms.intern(name), desc, true)
	return err
}

package jscore

import (
	"math"
	"sort"
)

// arrayStore backs a fast array: elements 0..len(values)-1 are present,
// writable, enumerable and configurable. The length property may exceed
// len(values); the indices in between are holes.
type arrayStore struct {
	values []Value
}

func (s *arrayStore) markChildren(mark func(gcObject)) {
	for _, v := range s.values {
		markValue(v, mark)
	}
}

func (s *arrayStore) finalize(r *Runtime) {
	values := s.values
	s.values = nil
	for _, v := range values {
		r.FreeValue(v)
	}
	r.memFree(int64(cap(values)) * sizeValueSlot)
}

// newArrayObject returns an empty fast array with length 0.
func (r *Runtime) newArrayObject(proto *Object) (*Object, error) {
	o, err := r.newObjectProtoClass(proto, ClassArray)
	if err != nil {
		return nil, err
	}
	o.fastArray = true
	o.payload = &arrayStore{}
	if _, err := r.addProperty(o, atomLength, FlagWritable|flagLength); err != nil {
		r.freeObjectRef(o)
		return nil, err
	}
	o.prop[0].value = _positiveZero
	return o, nil
}

// newArrayValues builds a fast array that takes ownership of values.
func (r *Runtime) newArrayValues(values []Value) (*Object, error) {
	o, err := r.newArrayObject(r.realm.arrayProto)
	if err != nil {
		for _, v := range values {
			r.FreeValue(v)
		}
		return nil, err
	}
	if err := r.memAlloc(int64(cap(values)) * sizeValueSlot); err != nil {
		for _, v := range values {
			r.FreeValue(v)
		}
		r.freeObjectRef(o)
		return nil, err
	}
	o.payload.(*arrayStore).values = values
	o.prop[0].value = intToValue(int64(len(values)))
	return o, nil
}

// NewArray returns an array holding copies of values.
func (r *Runtime) NewArray(values ...Value) (*Object, error) {
	vals := make([]Value, len(values))
	for i, v := range values {
		vals[i] = r.DupValue(valueOrUndefined(v))
	}
	return r.newArrayValues(vals)
}

// arrayLength returns the length property of an Array object.
func (r *Runtime) arrayLength(o *Object) uint32 {
	return uint32(o.prop[0].value.ToFloat())
}

// expandFastArray makes room for newLen elements. Existing values move to
// the new backing store unchanged.
func (r *Runtime) expandFastArray(o *Object, newLen int) error {
	st := o.payload.(*arrayStore)
	c := cap(st.values)
	if newLen <= c {
		return nil
	}
	newCap := c * 9 / 2
	if newCap < newLen {
		newCap = newLen
	}
	if err := r.memAlloc(int64(newCap-c) * sizeValueSlot); err != nil {
		return err
	}
	values := make([]Value, len(st.values), newCap)
	copy(values, st.values)
	st.values = values
	return nil
}

// addFastArrayElement appends v, taking ownership of it.
func (r *Runtime) addFastArrayElement(o *Object, v Value) error {
	st := o.payload.(*arrayStore)
	n := len(st.values)
	if err := r.expandFastArray(o, n+1); err != nil {
		r.FreeValue(v)
		return err
	}
	st.values = append(st.values, v)
	if uint32(n+1) > r.arrayLength(o) {
		o.prop[0].value = intToValue(int64(n) + 1)
	}
	return nil
}

// canAppendFast reports whether assigning element len(values) of the fast
// array o may skip the prototype walk: o accepts the element and nothing on
// its prototype chain can own an index property.
func (r *Runtime) canAppendFast(o *Object) bool {
	st := o.payload.(*arrayStore)
	if !o.extensible || (uint32(len(st.values)) >= r.arrayLength(o) && o.shape.props[0].flags&FlagWritable == 0) {
		return false
	}
	for p := o.shape.proto; p != nil; p = p.shape.proto {
		switch p.class {
		case ClassArray:
			if !p.fastArray || len(p.payload.(*arrayStore).values) > 0 || p.shape.hasSmallArrayIndex {
				return false
			}
		case ClassObject:
			if p.shape.hasSmallArrayIndex {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// convertFastArrayToArray moves the elements into ordinary properties.
// There is no way back.
func (r *Runtime) convertFastArrayToArray(o *Object) error {
	if err := r.prepareUpdate(o); err != nil {
		return err
	}
	st := o.payload.(*arrayStore)
	values := st.values
	if err := r.growProps(o, len(o.prop)+len(values)); err != nil {
		return err
	}
	for i, v := range values {
		if err := r.addShapeProperty(o, atomTagInt|atom(i), FlagCWE); err != nil {
			return err
		}
		o.prop[len(o.prop)-1].value = v
		values[i] = nil
	}
	st.values = nil
	r.memFree(int64(cap(values)) * sizeValueSlot)
	o.fastArray = false
	if r.logs.shape.AllowLevel(debugLevel) {
		r.logs.shape.Debugf("array %d converted to generic storage with %d elements", o.id, len(values))
	}
	return nil
}

// defineFastArrayIndex applies desc to element idx without leaving fast
// storage when possible. It reports false when the array must be
// converted first.
func (r *Runtime) defineFastArrayIndex(o *Object, idx uint32, desc *PropertyDescriptor) (bool, error) {
	if desc.IsAccessor() {
		return false, nil
	}
	st := o.payload.(*arrayStore)
	n := uint32(len(st.values))
	switch {
	case idx < n:
		if desc.Writable == FLAG_FALSE || desc.Configurable == FLAG_FALSE || desc.Enumerable == FLAG_FALSE {
			return false, nil
		}
		if desc.Value != nil {
			old := st.values[idx]
			st.values[idx] = r.DupValue(desc.Value)
			r.FreeValue(old)
		}
		return true, nil
	case idx == n:
		if !o.extensible || desc.Writable != FLAG_TRUE || desc.Configurable != FLAG_TRUE || desc.Enumerable != FLAG_TRUE {
			return false, nil
		}
		if idx >= r.arrayLength(o) && o.shape.props[0].flags&FlagWritable == 0 {
			return false, nil
		}
		return true, r.addFastArrayElement(o, r.DupValue(valueOrUndefined(desc.Value)))
	}
	return false, nil
}

// toArrayLength converts v for an assignment to length.
func (r *Runtime) toArrayLength(v Value) (uint32, error) {
	if i, ok := v.(valueInt); ok && i >= 0 {
		return uint32(i), nil
	}
	n, err := r.toNumber(v)
	if err != nil {
		return 0, err
	}
	f := n.ToFloat()
	u := toUint32(f)
	if float64(u) != f {
		return 0, r.throwRangeError("Invalid array length")
	}
	return u, nil
}

func (r *Runtime) setArrayLengthValue(o *Object, v Value, throw bool) (bool, error) {
	newLen, err := r.toArrayLength(v)
	if err != nil {
		return false, err
	}
	return r.setArrayLength(o, newLen, throw)
}

// setArrayLength truncates or extends o. Truncation stops above the first
// element that cannot be deleted.
func (r *Runtime) setArrayLength(o *Object, newLen uint32, throw bool) (bool, error) {
	oldLen := r.arrayLength(o)
	if o.shape.props[0].flags&FlagWritable == 0 {
		if newLen == oldLen {
			return true, nil
		}
		return r.reject(throw, "Cannot assign to read only property 'length' of object '[object Array]'")
	}
	if o.fastArray {
		st := o.payload.(*arrayStore)
		if int(newLen) < len(st.values) {
			tail := st.values[newLen:]
			st.values = st.values[:newLen]
			for i, v := range tail {
				tail[i] = nil
				r.FreeValue(v)
			}
		}
		o.prop[0].value = intToValue(int64(newLen))
		return true, nil
	}
	if newLen < oldLen {
		type indexed struct {
			idx  uint32
			atom atom
		}
		var doomed []indexed
		for _, pr := range o.shape.props {
			if pr.atom == atomNull {
				continue
			}
			if idx, ok := r.atoms.arrayIndex(pr.atom); ok && idx >= newLen {
				doomed = append(doomed, indexed{idx, pr.atom})
			}
		}
		sort.Slice(doomed, func(i, j int) bool { return doomed[i].idx > doomed[j].idx })
		for _, d := range doomed {
			ok, err := r.deleteProperty(o, d.atom)
			if err != nil {
				return false, err
			}
			if !ok {
				o.prop[0].value = intToValue(int64(d.idx) + 1)
				return r.reject(throw, "Cannot delete property '%d' of [object Array]", d.idx)
			}
		}
	}
	o.prop[0].value = intToValue(int64(newLen))
	return true, nil
}

func (r *Runtime) defineArrayLength(o *Object, desc PropertyDescriptor, throw bool) (bool, error) {
	if desc.Configurable == FLAG_TRUE || desc.Enumerable == FLAG_TRUE || desc.IsAccessor() {
		return r.reject(throw, "Cannot redefine property: length")
	}
	writable := o.shape.props[0].flags&FlagWritable != 0
	if !writable && desc.Writable == FLAG_TRUE {
		return r.reject(throw, "Cannot redefine property: length")
	}
	if desc.Value != nil {
		newLen, err := r.toArrayLength(desc.Value)
		if err != nil {
			return false, err
		}
		if ok, err := r.setArrayLength(o, newLen, throw); !ok || err != nil {
			return ok, err
		}
	}
	if writable && desc.Writable == FLAG_FALSE {
		if err := r.prepareUpdate(o); err != nil {
			return false, err
		}
		o.shape.props[0].flags &^= FlagWritable
	}
	return true, nil
}

func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(math.Mod(math.Trunc(f), 1<<32)))
}

// isArray reports whether v is an Array exotic object.
func isArray(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.class == ClassArray
}

// fastArrayValues returns the backing store of o when o is a fast array
// whose physical count equals length, the precondition for the fast paths
// of the Array methods. The slice must not be held across script calls.
func (r *Runtime) fastArrayValues(o *Object, length int64) ([]Value, bool) {
	if !o.fastArray {
		return nil, false
	}
	values := o.payload.(*arrayStore).values
	if int64(len(values)) != length {
		return nil, false
	}
	return values, true
}

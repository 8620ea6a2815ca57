package jscore

func (r *Runtime) builtin_Object(call FunctionCall) (Value, error) {
	arg := call.Argument(0)
	if !isNullish(arg) {
		return r.toObject(arg)
	}
	proto, err := r.getPrototypeFromConstructor(call.NewTarget, r.realm.objectProto)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(proto)
	return r.newObjectProtoClass(proto, ClassObject)
}

// getOwnProperty returns the descriptor of own property a. Values are
// borrowed from o.
func (r *Runtime) getOwnProperty(o *Object, a atom) (PropertyDescriptor, bool) {
	if o.fastArray && a.isTaggedInt() {
		values := o.payload.(*arrayStore).values
		if idx := a.toUint32(); idx < uint32(len(values)) {
			return dataDescriptor(values[idx], FlagCWE), true
		}
	} else if o.class == ClassString {
		if v, ok := r.stringIndex(o.payload.(*primitiveData).v.String(), a); ok {
			return dataDescriptor(v, FlagEnumerable), true
		}
	}
	i, pr := o.shape.find(a)
	if pr == nil {
		return PropertyDescriptor{}, false
	}
	desc := PropertyDescriptor{
		Configurable: ToFlag(pr.flags&FlagConfigurable != 0),
		Enumerable:   ToFlag(pr.flags&FlagEnumerable != 0),
	}
	slot := &o.prop[i]
	if pr.flags&flagGetSet != 0 {
		desc.Getter, desc.Setter = _undefined, _undefined
		if slot.getter != nil {
			desc.Getter = slot.getter
		}
		if slot.setter != nil {
			desc.Setter = slot.setter
		}
		return desc, true
	}
	desc.Value = slot.value
	desc.Writable = ToFlag(pr.flags&FlagWritable != 0)
	return desc, true
}

// toPropertyDescriptor implements ToPropertyDescriptor. The values in the
// result are owned; release them with freeDescriptor.
func (r *Runtime) toPropertyDescriptor(v Value) (PropertyDescriptor, error) {
	var desc PropertyDescriptor
	o, ok := v.(*Object)
	if !ok {
		return desc, r.throwTypeError("Property description must be an object: %s", valueOrUndefined(v).String())
	}
	field := func(name string) (Value, bool, error) {
		a := r.atoms.intern(name)
		has, err := r.hasProperty(o, a)
		if err != nil || !has {
			return nil, false, err
		}
		v, err := r.getProperty(o, a, o)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	flag := func(name string, f *Flag) error {
		v, ok, err := field(name)
		if err != nil || !ok {
			return err
		}
		*f = ToFlag(v.ToBoolean())
		r.FreeValue(v)
		return nil
	}
	if err := flag("enumerable", &desc.Enumerable); err != nil {
		return desc, err
	}
	if err := flag("configurable", &desc.Configurable); err != nil {
		return desc, err
	}
	var err error
	if desc.Value, _, err = field("value"); err != nil {
		return desc, err
	}
	if err = flag("writable", &desc.Writable); err != nil {
		r.freeDescriptor(desc)
		return PropertyDescriptor{}, err
	}
	for _, acc := range []struct {
		name string
		dst  *Value
	}{{"get", &desc.Getter}, {"set", &desc.Setter}} {
		f, ok, err := field(acc.name)
		if err != nil {
			r.freeDescriptor(desc)
			return PropertyDescriptor{}, err
		}
		if !ok {
			continue
		}
		*acc.dst = f
		if !IsUndefined(f) && !r.isCallable(f) {
			r.freeDescriptor(desc)
			return PropertyDescriptor{}, r.throwTypeError("%s must be a function: %s", acc.name, f.String())
		}
	}
	if desc.IsAccessor() && desc.IsData() {
		r.freeDescriptor(desc)
		return PropertyDescriptor{}, r.throwTypeError("Invalid property descriptor. Cannot both specify accessors and a value or writable attribute")
	}
	return desc, nil
}

func (r *Runtime) freeDescriptor(desc PropertyDescriptor) {
	for _, v := range []Value{desc.Value, desc.Getter, desc.Setter} {
		if v != nil {
			r.FreeValue(v)
		}
	}
}

// fromPropertyDescriptor implements FromPropertyDescriptor.
func (r *Runtime) fromPropertyDescriptor(desc PropertyDescriptor) (*Object, error) {
	o, err := r.NewObject()
	if err != nil {
		return nil, err
	}
	put := func(name string, v Value) error {
		_, err := r.createDataProperty(o, r.atoms.intern(name), v, true)
		return err
	}
	if desc.IsAccessor() {
		err = put("get", valueOrUndefined(desc.Getter))
		if err == nil {
			err = put("set", valueOrUndefined(desc.Setter))
		}
	} else {
		err = put("value", valueOrUndefined(desc.Value))
		if err == nil {
			err = put("writable", valueBool(desc.Writable.Bool()))
		}
	}
	if err == nil {
		err = put("enumerable", valueBool(desc.Enumerable.Bool()))
	}
	if err == nil {
		err = put("configurable", valueBool(desc.Configurable.Bool()))
	}
	if err != nil {
		r.freeObjectRef(o)
		return nil, err
	}
	return o, nil
}

// newArrayFromKeys returns an array of property keys as strings or
// symbols.
func (r *Runtime) newArrayFromKeys(keys []atom) (*Object, error) {
	values := make([]Value, len(keys))
	for i, a := range keys {
		values[i] = r.atomToValue(a)
	}
	return r.newArrayValues(values)
}

func (r *Runtime) object_keys(call FunctionCall) (Value, error) {
	o, err := r.toObject(call.Argument(0))
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	return r.newArrayFromKeys(r.ownKeys(o, keysStrings|keysEnumOnly))
}

func (r *Runtime) object_getOwnPropertyNames(call FunctionCall) (Value, error) {
	o, err := r.toObject(call.Argument(0))
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	return r.newArrayFromKeys(r.ownKeys(o, keysStrings))
}

// enumerableOwn collects [key, value] pairs or bare values of the own
// enumerable string properties.
func (r *Runtime) enumerableOwn(v Value, entries bool) (Value, error) {
	o, err := r.toObject(v)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	res, err := r.newArrayObject(r.realm.arrayProto)
	if err != nil {
		return nil, err
	}
	for _, a := range r.ownKeys(o, keysStrings) {
		flags, ok := r.getOwnPropertyFlags(o, a)
		if !ok || flags&FlagEnumerable == 0 {
			continue
		}
		val, err := r.getProperty(o, a, o)
		if err != nil {
			r.freeObjectRef(res)
			return nil, err
		}
		item := val
		if entries {
			pair, err := r.newArrayValues([]Value{r.atomToValue(a), val})
			if err != nil {
				r.freeObjectRef(res)
				return nil, err
			}
			item = pair
		}
		err = r.addFastArrayElement(res, item)
		if err != nil {
			r.freeObjectRef(res)
			return nil, err
		}
	}
	return res, nil
}

func (r *Runtime) object_values(call FunctionCall) (Value, error) {
	return r.enumerableOwn(call.Argument(0), false)
}

func (r *Runtime) object_entries(call FunctionCall) (Value, error) {
	return r.enumerableOwn(call.Argument(0), true)
}

func (r *Runtime) object_assign(call FunctionCall) (Value, error) {
	to, err := r.toObject(call.Argument(0))
	if err != nil {
		return nil, err
	}
	if len(call.Arguments) > 1 {
		for _, arg := range call.Arguments[1:] {
			if isNullish(arg) {
				continue
			}
			if err := r.assignFrom(to, arg); err != nil {
				r.freeObjectRef(to)
				return nil, err
			}
		}
	}
	return to, nil
}

func (r *Runtime) assignFrom(to *Object, src Value) error {
	from, err := r.toObject(src)
	if err != nil {
		return err
	}
	defer r.freeObjectRef(from)
	for _, a := range r.ownKeys(from, keysStrings|keysSymbols) {
		flags, ok := r.getOwnPropertyFlags(from, a)
		if !ok || flags&FlagEnumerable == 0 {
			continue
		}
		v, err := r.getProperty(from, a, from)
		if err != nil {
			return err
		}
		err = r.setProperty(to, a, v, to, true)
		r.FreeValue(v)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) object_create(call FunctionCall) (Value, error) {
	var proto *Object
	switch p := call.Argument(0).(type) {
	case *Object:
		proto = p
	case valueNull:
	default:
		return nil, r.throwTypeError("Object prototype may only be an Object or null: %s", valueOrUndefined(p).String())
	}
	o, err := r.newObjectProtoClass(proto, ClassObject)
	if err != nil {
		return nil, err
	}
	if props := call.Argument(1); !IsUndefined(props) {
		if err := r.defineProperties(o, props); err != nil {
			r.freeObjectRef(o)
			return nil, err
		}
	}
	return o, nil
}

func (r *Runtime) defineProperties(o *Object, props Value) error {
	p, err := r.toObject(props)
	if err != nil {
		return err
	}
	defer r.freeObjectRef(p)
	type pending struct {
		a    atom
		desc PropertyDescriptor
	}
	var list []pending
	defer func() {
		for _, d := range list {
			r.freeDescriptor(d.desc)
		}
	}()
	for _, a := range r.ownKeys(p, keysStrings|keysSymbols) {
		flags, ok := r.getOwnPropertyFlags(p, a)
		if !ok || flags&FlagEnumerable == 0 {
			continue
		}
		v, err := r.getProperty(p, a, p)
		if err != nil {
			return err
		}
		desc, err := r.toPropertyDescriptor(v)
		r.FreeValue(v)
		if err != nil {
			return err
		}
		list = append(list, pending{a, desc})
	}
	for _, d := range list {
		if _, err := r.defineOwnProperty(o, d.a, d.desc, true); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) object_defineProperty(call FunctionCall) (Value, error) {
	o, ok := call.Argument(0).(*Object)
	if !ok {
		return nil, r.throwTypeError("Object.defineProperty called on non-object")
	}
	a, err := r.toPropertyKey(call.Argument(1))
	if err != nil {
		return nil, err
	}
	desc, err := r.toPropertyDescriptor(call.Argument(2))
	if err != nil {
		return nil, err
	}
	defer r.freeDescriptor(desc)
	if _, err := r.defineOwnProperty(o, a, desc, true); err != nil {
		return nil, err
	}
	return r.DupValue(o), nil
}

func (r *Runtime) object_defineProperties(call FunctionCall) (Value, error) {
	o, ok := call.Argument(0).(*Object)
	if !ok {
		return nil, r.throwTypeError("Object.defineProperties called on non-object")
	}
	if err := r.defineProperties(o, call.Argument(1)); err != nil {
		return nil, err
	}
	return r.DupValue(o), nil
}

func (r *Runtime) object_getOwnPropertyDescriptor(call FunctionCall) (Value, error) {
	o, err := r.toObject(call.Argument(0))
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	a, err := r.toPropertyKey(call.Argument(1))
	if err != nil {
		return nil, err
	}
	desc, ok := r.getOwnProperty(o, a)
	if !ok {
		return _undefined, nil
	}
	return r.fromPropertyDescriptor(desc)
}

func (r *Runtime) object_getPrototypeOf(call FunctionCall) (Value, error) {
	o, err := r.toObject(call.Argument(0))
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	if p := o.shape.proto; p != nil {
		return r.DupValue(p), nil
	}
	return _null, nil
}

func (r *Runtime) object_setPrototypeOf(call FunctionCall) (Value, error) {
	arg := call.Argument(0)
	if isNullish(arg) {
		return nil, r.throwTypeError("Object.setPrototypeOf called on null or undefined")
	}
	var proto *Object
	switch p := call.Argument(1).(type) {
	case *Object:
		proto = p
	case valueNull:
	default:
		return nil, r.throwTypeError("Object prototype may only be an Object or null: %s", valueOrUndefined(p).String())
	}
	o, ok := arg.(*Object)
	if !ok {
		return arg, nil
	}
	if _, err := r.setPrototype(o, proto, true); err != nil {
		return nil, err
	}
	return r.DupValue(o), nil
}

func (r *Runtime) object_preventExtensions(call FunctionCall) (Value, error) {
	arg := call.Argument(0)
	if o, ok := arg.(*Object); ok {
		r.preventExtensions(o)
	}
	return r.DupValue(arg), nil
}

func (r *Runtime) object_isExtensible(call FunctionCall) (Value, error) {
	if o, ok := call.Argument(0).(*Object); ok {
		return valueBool(o.extensible), nil
	}
	return valueFalse, nil
}

// freeze makes every own property non-configurable, and data properties
// read-only. Fast arrays move to generic storage first since their
// elements are always writable.
func (r *Runtime) freeze(o *Object) error {
	r.preventExtensions(o)
	if o.fastArray {
		if err := r.convertFastArrayToArray(o); err != nil {
			return err
		}
	}
	for _, a := range r.ownKeys(o, keysStrings|keysSymbols) {
		flags, ok := r.getOwnPropertyFlags(o, a)
		if !ok || flags&FlagConfigurable == 0 && flags&(flagGetSet|FlagWritable) != FlagWritable {
			continue
		}
		desc := PropertyDescriptor{Configurable: FLAG_FALSE}
		if flags&flagGetSet == 0 {
			desc.Writable = FLAG_FALSE
		}
		if _, err := r.defineOwnProperty(o, a, desc, true); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) object_freeze(call FunctionCall) (Value, error) {
	arg := call.Argument(0)
	if o, ok := arg.(*Object); ok {
		if err := r.freeze(o); err != nil {
			return nil, err
		}
	}
	return r.DupValue(arg), nil
}

func (r *Runtime) object_isFrozen(call FunctionCall) (Value, error) {
	o, ok := call.Argument(0).(*Object)
	if !ok {
		return valueTrue, nil
	}
	if o.extensible {
		return valueFalse, nil
	}
	for _, a := range r.ownKeys(o, keysStrings|keysSymbols) {
		flags, _ := r.getOwnPropertyFlags(o, a)
		if flags&FlagConfigurable != 0 || flags&(flagGetSet|FlagWritable) == FlagWritable {
			return valueFalse, nil
		}
	}
	return valueTrue, nil
}

func (r *Runtime) objectproto_hasOwnProperty(call FunctionCall) (Value, error) {
	a, err := r.toPropertyKey(call.Argument(0))
	if err != nil {
		return nil, err
	}
	o, err := r.toObject(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	return valueBool(r.hasOwnProperty(o, a)), nil
}

func (r *Runtime) objectproto_propertyIsEnumerable(call FunctionCall) (Value, error) {
	a, err := r.toPropertyKey(call.Argument(0))
	if err != nil {
		return nil, err
	}
	o, err := r.toObject(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	flags, ok := r.getOwnPropertyFlags(o, a)
	return valueBool(ok && flags&FlagEnumerable != 0), nil
}

func (r *Runtime) objectproto_isPrototypeOf(call FunctionCall) (Value, error) {
	v, ok := call.Argument(0).(*Object)
	if !ok {
		return valueFalse, nil
	}
	o, err := r.toObject(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	for p := v.shape.proto; p != nil; p = p.shape.proto {
		if p == o {
			return valueTrue, nil
		}
	}
	return valueFalse, nil
}

func (r *Runtime) objectproto_toString(call FunctionCall) (Value, error) {
	switch call.This.(type) {
	case valueUndefined, nil:
		return newStringValue("[object Undefined]"), nil
	case valueNull:
		return newStringValue("[object Null]"), nil
	}
	o, err := r.toObject(call.This)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(o)
	tag, err := r.getProperty(o, r.atoms.symToStringTag, o)
	if err != nil {
		return nil, err
	}
	if s, ok := tag.(valueString); ok {
		return newStringValue("[object " + string(s) + "]"), nil
	}
	r.FreeValue(tag)
	return newStringValue(o.String()), nil
}

func (r *Runtime) objectproto_toLocaleString(call FunctionCall) (Value, error) {
	f, err := r.getProperty(call.This, atomToString, call.This)
	if err != nil {
		return nil, err
	}
	defer r.FreeValue(f)
	return r.Call(f, call.This)
}

func (r *Runtime) objectproto_valueOf(call FunctionCall) (Value, error) {
	return r.toObject(call.This)
}

func (r *Runtime) initObject(b *builder) {
	c := r.realm
	proto := c.objectProto
	b.method(proto, "hasOwnProperty", 1, r.objectproto_hasOwnProperty)
	b.method(proto, "propertyIsEnumerable", 1, r.objectproto_propertyIsEnumerable)
	b.method(proto, "isPrototypeOf", 1, r.objectproto_isPrototypeOf)
	b.method(proto, "toString", 0, r.objectproto_toString)
	b.method(proto, "toLocaleString", 0, r.objectproto_toLocaleString)
	b.method(proto, "valueOf", 0, r.objectproto_valueOf)

	o := b.ctor("Object", 1, r.builtin_Object, proto)
	if b.err != nil {
		return
	}
	b.method(o, "assign", 2, r.object_assign)
	b.method(o, "create", 2, r.object_create)
	b.method(o, "defineProperty", 3, r.object_defineProperty)
	b.method(o, "defineProperties", 2, r.object_defineProperties)
	b.method(o, "entries", 1, r.object_entries)
	b.method(o, "freeze", 1, r.object_freeze)
	b.method(o, "getOwnPropertyDescriptor", 2, r.object_getOwnPropertyDescriptor)
	b.method(o, "getOwnPropertyNames", 1, r.object_getOwnPropertyNames)
	b.method(o, "getPrototypeOf", 1, r.object_getPrototypeOf)
	b.method(o, "isExtensible", 1, r.object_isExtensible)
	b.method(o, "isFrozen", 1, r.object_isFrozen)
	b.method(o, "keys", 1, r.object_keys)
	b.method(o, "preventExtensions", 1, r.object_preventExtensions)
	b.method(o, "setPrototypeOf", 2, r.object_setPrototypeOf)
	b.method(o, "values", 1, r.object_values)
}

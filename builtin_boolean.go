package jscore

func (r *Runtime) builtin_Boolean(call FunctionCall) (Value, error) {
	v := valueBool(call.Argument(0).ToBoolean())
	if call.NewTarget == nil {
		return v, nil
	}
	proto, err := r.getPrototypeFromConstructor(call.NewTarget, r.realm.booleanProto)
	if err != nil {
		return nil, err
	}
	defer r.freeObjectRef(proto)
	return r.newPrimitiveObject(v, proto, ClassBoolean)
}

func (r *Runtime) thisBooleanValue(v Value, method string) (bool, error) {
	if b, ok := v.(valueBool); ok {
		return bool(b), nil
	}
	if p, ok := primitiveOf(v, ClassBoolean); ok {
		return p.ToBoolean(), nil
	}
	return false, r.throwTypeError("Boolean.prototype.%s requires that 'this' be a Boolean", method)
}

func (r *Runtime) booleanproto_toString(call FunctionCall) (Value, error) {
	b, err := r.thisBooleanValue(call.This, "toString")
	if err != nil {
		return nil, err
	}
	return newStringValue(valueBool(b).String()), nil
}

func (r *Runtime) booleanproto_valueOf(call FunctionCall) (Value, error) {
	b, err := r.thisBooleanValue(call.This, "valueOf")
	if err != nil {
		return nil, err
	}
	return valueBool(b), nil
}

func (r *Runtime) initBoolean(b *builder) {
	proto := r.realm.booleanProto
	b.method(proto, "toString", 0, r.booleanproto_toString)
	b.method(proto, "valueOf", 0, r.booleanproto_valueOf)
	b.ctor("Boolean", 1, r.builtin_Boolean, proto)
}

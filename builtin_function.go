package jscore

func (r *Runtime) builtin_Function(call FunctionCall) (Value, error) {
	return nil, r.throwTypeError("Function constructor is not supported: source compilation is done by the interpreter")
}

func (r *Runtime) initFunction(b *builder) {
	proto := r.realm.functionProto
	if b.err == nil {
		b.err = r.initFunctionProps(proto, "", 0)
	}
	b.method(proto, "apply", 2, r.functionproto_apply)
	b.method(proto, "bind", 1, r.functionproto_bind)
	b.method(proto, "call", 1, r.functionproto_call)
	b.method(proto, "toString", 0, r.functionproto_toString)
	b.ctor("Function", 1, r.builtin_Function, proto)
}

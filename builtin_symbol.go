package jscore

func (r *Runtime) builtin_Symbol(call FunctionCall) (Value, error) {
	if call.NewTarget != nil {
		return nil, r.throwTypeError("Symbol is not a constructor")
	}
	desc := ""
	if arg := call.Argument(0); !IsUndefined(arg) {
		s, err := r.toStringValue(arg)
		if err != nil {
			return nil, err
		}
		desc = s
	}
	return r.atoms.newSymbol(desc), nil
}

func (r *Runtime) thisSymbolValue(v Value, method string) (*Symbol, error) {
	if sym, ok := v.(*Symbol); ok {
		return sym, nil
	}
	if p, ok := primitiveOf(v, ClassSymbol); ok {
		if sym, ok := p.(*Symbol); ok {
			return sym, nil
		}
	}
	return nil, r.throwTypeError("Symbol.prototype.%s requires that 'this' be a Symbol", method)
}

func (r *Runtime) symbolproto_toString(call FunctionCall) (Value, error) {
	sym, err := r.thisSymbolValue(call.This, "toString")
	if err != nil {
		return nil, err
	}
	return newStringValue(sym.String()), nil
}

func (r *Runtime) symbolproto_valueOf(call FunctionCall) (Value, error) {
	sym, err := r.thisSymbolValue(call.This, "valueOf")
	if err != nil {
		return nil, err
	}
	return sym, nil
}

func (r *Runtime) symbolproto_getDescription(call FunctionCall) (Value, error) {
	sym, err := r.thisSymbolValue(call.This, "description")
	if err != nil {
		return nil, err
	}
	return newStringValue(sym.desc), nil
}

func (r *Runtime) symbol_for(call FunctionCall) (Value, error) {
	key, err := r.toStringValue(call.Argument(0))
	if err != nil {
		return nil, err
	}
	if v := r.symbolRegistry[key]; v != nil {
		return v, nil
	}
	if r.symbolRegistry == nil {
		r.symbolRegistry = make(map[string]*Symbol)
	}
	v := r.atoms.newSymbol(key)
	r.symbolRegistry[key] = v
	return v, nil
}

func (r *Runtime) symbol_keyFor(call FunctionCall) (Value, error) {
	arg := call.Argument(0)
	sym, ok := arg.(*Symbol)
	if !ok {
		return nil, r.throwTypeError("%s is not a symbol", valueOrUndefined(arg).String())
	}
	if r.symbolRegistry[sym.desc] == sym {
		return newStringValue(sym.desc), nil
	}
	return _undefined, nil
}

func (r *Runtime) initSymbol(b *builder) {
	proto := r.realm.symbolProto
	b.method(proto, "toString", 0, r.symbolproto_toString)
	b.method(proto, "valueOf", 0, r.symbolproto_valueOf)
	b.getter(proto, r.atoms.intern("description"), "description", r.symbolproto_getDescription)
	b.methodAtom(proto, r.atoms.symToPrimitive, "[Symbol.toPrimitive]", 1, r.symbolproto_valueOf)
	if b.err == nil {
		b.err = r.definePropertyValue(proto, r.atoms.symToStringTag, newStringValue(classSymbol), FlagConfigurable)
	}

	s := b.ctor("Symbol", 0, r.builtin_Symbol, proto)
	if b.err != nil {
		return
	}
	b.method(s, "for", 1, r.symbol_for)
	b.method(s, "keyFor", 1, r.symbol_keyFor)
	for _, wk := range []struct {
		name string
		a    atom
	}{
		{"isConcatSpreadable", r.atoms.symIsConcatSpreadable},
		{"iterator", r.atoms.symIterator},
		{"species", r.atoms.symSpecies},
		{"toPrimitive", r.atoms.symToPrimitive},
		{"toStringTag", r.atoms.symToStringTag},
	} {
		b.value(s, wk.name, r.atoms.symbol(wk.a), flagNone)
	}
}

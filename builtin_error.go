package jscore

var nativeErrorKinds = [...]ErrorKind{
	KindTypeError,
	KindRangeError,
	KindSyntaxError,
	KindReferenceError,
	KindInternalError,
}

// newErrorObject builds an error of the given kind with an own message.
func (r *Runtime) newErrorObject(kind ErrorKind, msg string) (*Object, error) {
	return r.newErrorObjectProto(r.realm.errorProtoFor(kind), kind, msg)
}

func (r *Runtime) newErrorObjectProto(proto *Object, kind ErrorKind, msg string) (*Object, error) {
	o, err := r.newObjectProtoClass(proto, ClassError)
	if err != nil {
		return nil, err
	}
	o.payload = &errorData{kind: kind}
	if msg != "" {
		if err := r.definePropertyValue(o, atomMessage, newStringValue(msg), flagCW); err != nil {
			r.freeObjectRef(o)
			return nil, err
		}
	}
	return o, nil
}

// NewTypeError returns a TypeError object.
func (r *Runtime) NewTypeError(format string, args ...interface{}) (*Object, error) {
	return r.newErrorObject(KindTypeError, sprintf(format, args...))
}

// NewError returns an Error object.
func (r *Runtime) NewError(format string, args ...interface{}) (*Object, error) {
	return r.newErrorObject(KindError, sprintf(format, args...))
}

func (r *Runtime) builtin_Error(kind ErrorKind, defProto *Object) NativeFunction {
	return func(call FunctionCall) (Value, error) {
		newTarget := call.NewTarget
		proto, err := r.getPrototypeFromConstructor(newTarget, defProto)
		if err != nil {
			return nil, err
		}
		defer r.freeObjectRef(proto)
		o, err := r.newErrorObjectProto(proto, kind, "")
		if err != nil {
			return nil, err
		}
		if msg := call.Argument(0); !IsUndefined(msg) {
			s, err := r.toStringValue(msg)
			if err == nil {
				err = r.definePropertyValue(o, atomMessage, newStringValue(s), flagCW)
			}
			if err != nil {
				r.freeObjectRef(o)
				return nil, err
			}
		}
		if opts, ok := call.Argument(1).(*Object); ok {
			has, err := r.hasProperty(opts, atomCause)
			if err == nil && has {
				var cause Value
				if cause, err = r.getProperty(opts, atomCause, opts); err == nil {
					err = r.definePropertyValue(o, atomCause, cause, flagCW)
					r.FreeValue(cause)
				}
			}
			if err != nil {
				r.freeObjectRef(o)
				return nil, err
			}
		}
		return o, nil
	}
}

func (r *Runtime) errorproto_toString(call FunctionCall) (Value, error) {
	o, ok := call.This.(*Object)
	if !ok {
		return nil, r.throwTypeError("Error.prototype.toString called on non-object")
	}
	read := func(a atom, def string) (string, error) {
		v, err := r.getProperty(o, a, o)
		if err != nil {
			return "", err
		}
		defer r.FreeValue(v)
		if IsUndefined(v) {
			return def, nil
		}
		return r.toStringValue(v)
	}
	name, err := read(atomName, "Error")
	if err != nil {
		return nil, err
	}
	msg, err := read(atomMessage, "")
	if err != nil {
		return nil, err
	}
	switch {
	case name == "":
		return newStringValue(msg), nil
	case msg == "":
		return newStringValue(name), nil
	}
	return newStringValue(name + ": " + msg), nil
}

func (r *Runtime) initErrors(b *builder) {
	c := r.realm
	b.value(c.errorProto, "name", newStringValue("Error"), flagCW)
	b.value(c.errorProto, "message", stringEmpty, flagCW)
	b.method(c.errorProto, "toString", 0, r.errorproto_toString)
	errorCtor := b.ctor("Error", 1, r.builtin_Error(KindError, c.errorProto), c.errorProto)

	for _, kind := range nativeErrorKinds {
		proto := b.object(c.errorProto, ClassObject)
		if b.err != nil {
			return
		}
		c.nativeErrorProtos[kind] = proto
		name := kind.String()
		b.value(proto, "name", newStringValue(name), flagCW)
		b.value(proto, "message", stringEmpty, flagCW)
		f := b.ctor(name, 1, r.builtin_Error(kind, proto), proto)
		if b.err == nil {
			_, b.err = r.setPrototype(f, errorCtor, true)
		}
	}
}

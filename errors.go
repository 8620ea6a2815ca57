package jscore

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a thrown exception.
type ErrorKind int

const (
	KindError ErrorKind = iota
	KindTypeError
	KindRangeError
	KindSyntaxError
	KindReferenceError
	KindInternalError
	KindOutOfMemory
	KindStackOverflow
)

// String returns the constructor name used for errors of this kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTypeError:
		return "TypeError"
	case KindRangeError:
		return "RangeError"
	case KindSyntaxError:
		return "SyntaxError"
	case KindReferenceError:
		return "ReferenceError"
	case KindInternalError, KindOutOfMemory, KindStackOverflow:
		return "InternalError"
	}
	return "Error"
}

// Exception is returned by every fallible operation. The thrown value is
// held by the runtime until GetException or the next throw.
type Exception struct {
	kind    ErrorKind
	message string
	cause   error

	// position in the parsed text for SyntaxErrors raised by the JSON parser
	offset       int
	line, column int
}

func (e *Exception) Error() string {
	return e.message
}

// Kind reports the error class.
func (e *Exception) Kind() ErrorKind {
	return e.kind
}

// Unwrap returns the Go error a native function failed with, if any.
func (e *Exception) Unwrap() error {
	return e.cause
}

// Position returns the 1-based line and column of a parse error, or zeros.
func (e *Exception) Position() (line, column int) {
	return e.line, e.column
}

// Offset returns the byte offset of a parse error in its input.
func (e *Exception) Offset() int {
	return e.offset
}

// IsKind reports whether err is an Exception of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex.kind == kind
	}
	return false
}

type errorData struct {
	kind ErrorKind
}

func (d *errorData) markChildren(func(gcObject)) {}
func (d *errorData) finalize(*Runtime)          {}

// throw stashes val as the pending exception, taking ownership of it.
func (r *Runtime) throw(val Value, ex *Exception) error {
	old := r.curException
	r.curException = val
	r.FreeValue(old)
	return ex
}

// Throw raises v from native code. v is borrowed.
func (r *Runtime) Throw(v Value) error {
	kind, msg := r.describeThrown(v)
	return r.throw(r.DupValue(v), &Exception{kind: kind, message: msg})
}

// GetException transfers the pending exception to the caller.
func (r *Runtime) GetException() Value {
	v := r.curException
	r.curException = nil
	if v == nil {
		return _undefined
	}
	return v
}

// HasException reports whether a thrown value is pending.
func (r *Runtime) HasException() bool {
	return r.curException != nil
}

// ClearException releases the pending exception.
func (r *Runtime) ClearException() {
	r.FreeValue(r.GetException())
}

func (r *Runtime) describeThrown(v Value) (ErrorKind, string) {
	if o, ok := v.(*Object); ok {
		if d, ok := o.payload.(*errorData); ok {
			msg := ""
			if m, ok := r.ownDataProperty(o, atomMessage); ok {
				msg = m.String()
			}
			return d.kind, d.kind.String() + ": " + msg
		}
		return KindError, "Uncaught " + o.String()
	}
	if v == nil {
		return KindError, "Uncaught undefined"
	}
	return KindError, "Uncaught " + v.String()
}

func (r *Runtime) throwError(kind ErrorKind, format string, args ...interface{}) error {
	msg := sprintf(format, args...)
	ex := &Exception{kind: kind, message: kind.String() + ": " + msg}
	if r.realm == nil {
		return r.throw(_null, ex)
	}
	obj, err := r.newErrorObject(kind, msg)
	if err != nil {
		return err
	}
	return r.throw(obj, ex)
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (r *Runtime) throwTypeError(format string, args ...interface{}) error {
	return r.throwError(KindTypeError, format, args...)
}

func (r *Runtime) throwRangeError(format string, args ...interface{}) error {
	return r.throwError(KindRangeError, format, args...)
}

// throwSyntaxError raises a SyntaxError located in parsed text. Positions
// are recorded on the returned Exception.
func (r *Runtime) throwSyntaxError(offset, line, column int, format string, args ...interface{}) error {
	err := r.throwError(KindSyntaxError, format, args...)
	if ex, ok := err.(*Exception); ok && ex.kind == KindSyntaxError {
		ex.offset, ex.line, ex.column = offset, line, column
	}
	return err
}

func (r *Runtime) throwReferenceError(format string, args ...interface{}) error {
	return r.throwError(KindReferenceError, format, args...)
}

func (r *Runtime) throwInternalError(format string, args ...interface{}) error {
	return r.throwError(KindInternalError, format, args...)
}

func (r *Runtime) throwStackOverflow() error {
	return r.throwError(KindStackOverflow, "stack overflow")
}

// throwOutOfMemory must not allocate its way back into itself: while the
// error object is being built the memory limit is suspended, and a nested
// report leaves null as the pending value.
func (r *Runtime) throwOutOfMemory() error {
	if r.inOutOfMemory {
		return r.throw(_null, &Exception{kind: KindOutOfMemory, message: "InternalError: out of memory"})
	}
	r.inOutOfMemory = true
	defer func() {
		r.inOutOfMemory = false
	}()
	r.log.Warning("memory limit reached", "limit", r.opts.memoryLimit, "allocated", r.gc.allocated)
	return r.throwError(KindOutOfMemory, "out of memory")
}

// wrapGoError converts an error returned by a native function into a
// thrown Error object. Exceptions pass through unchanged.
func (r *Runtime) wrapGoError(err error) error {
	var ex *Exception
	if errors.As(err, &ex) {
		return err
	}
	e := r.throwError(KindError, "%s", err.Error())
	if ex, ok := e.(*Exception); ok && ex.kind == KindError {
		ex.cause = err
	}
	return e
}

func (r *Runtime) lengthOverflow() error {
	return r.throwTypeError("Array too long")
}

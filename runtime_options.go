package jscore

import (
	"github.com/tliron/commonlog"
	"golang.org/x/text/language"
)

const (
	defaultGCThreshold   = 256 * 1024
	defaultMaxStackDepth = 1000
)

var defaultOptions = options{
	gcThreshold:   defaultGCThreshold,
	maxStackDepth: defaultMaxStackDepth,
	locale:        language.AmericanEnglish,
}

type Option interface {
	apply(*options)
}

type options struct {
	// memoryLimit bounds the estimated heap; 0 means unlimited.
	memoryLimit int64
	// gcThreshold is the heap size that triggers the first cycle
	// collection and the floor for later thresholds. Negative disables
	// automatic collection.
	gcThreshold   int64
	maxStackDepth int
	interpreter   Interpreter
	locale        language.Tag
	extendedJSON  bool
	logger        commonlog.Logger
}

type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithMemoryLimit makes allocations beyond limit bytes fail with an out of
// memory error.
func WithMemoryLimit(limit int64) Option {
	return newFuncOption(func(o *options) {
		o.memoryLimit = limit
	})
}

// WithGCThreshold sets the allocation volume that triggers cycle
// collection. A negative threshold turns automatic collection off; RunGC
// still works.
func WithGCThreshold(threshold int64) Option {
	return newFuncOption(func(o *options) {
		o.gcThreshold = threshold
	})
}

// WithMaxStackDepth bounds nested calls.
func WithMaxStackDepth(depth int) Option {
	return newFuncOption(func(o *options) {
		o.maxStackDepth = depth
	})
}

// WithInterpreter installs the executor for bytecode closures.
func WithInterpreter(interp Interpreter) Option {
	return newFuncOption(func(o *options) {
		o.interpreter = interp
	})
}

// WithLocale selects the locale used by toLocaleString.
func WithLocale(tag language.Tag) Option {
	return newFuncOption(func(o *options) {
		o.locale = tag
	})
}

// WithExtendedJSON makes JSON.parse accept trailing commas, unquoted keys
// and single-quoted strings.
func WithExtendedJSON(enabled bool) Option {
	return newFuncOption(func(o *options) {
		o.extendedJSON = enabled
	})
}

// WithLogger replaces the runtime's logger.
func WithLogger(logger commonlog.Logger) Option {
	return newFuncOption(func(o *options) {
		o.logger = logger
	})
}

package jscore

import "github.com/tliron/commonlog"

const debugLevel = commonlog.Debug

var (
	gcLog      = commonlog.GetLogger("jscore.gc")
	shapeLog   = commonlog.GetLogger("jscore.shape")
	icLog      = commonlog.GetLogger("jscore.ic")
	runtimeLog = commonlog.GetLogger("jscore.runtime")
)

// loggers are the per-subsystem loggers of one runtime. A logger given
// through WithLogger receives every subsystem's messages, each tagged
// with its scope.
type loggers struct {
	runtime commonlog.Logger
	gc      commonlog.Logger
	shape   commonlog.Logger
	ic      commonlog.Logger
}

func newLoggers(base commonlog.Logger) loggers {
	if base == nil {
		return loggers{runtime: runtimeLog, gc: gcLog, shape: shapeLog, ic: icLog}
	}
	return loggers{
		runtime: base,
		gc:      commonlog.NewScopeLogger(base, "gc"),
		shape:   commonlog.NewScopeLogger(base, "shape"),
		ic:      commonlog.NewScopeLogger(base, "ic"),
	}
}

package hook

import "go.uber.org/zap"

// Diagnostics is the engine's structured logging sink for the fault kinds
// that must be caught and logged rather than propagated: an analysis
// panicking mid-callback, or an export that failed to wrap. Policy
// denials are logged too, for operator visibility, even though (unlike
// the fault kinds) they also propagate to the caller.
//
// A single AuditEvent-style emitter fanning out to a list of Log(event)
// sinks would be overkill here: analyses themselves are the fan-out target
// (see analysis.go), so Diagnostics only needs to be one more zap.Logger
// carried in the struct, the same way every package in this codebase
// takes a logger.
type Diagnostics struct {
	log *zap.Logger
}

// NewDiagnostics wraps logger. A nil logger is replaced with zap's no-op
// logger so callers never need a nil check.
func NewDiagnostics(logger *zap.Logger) *Diagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Diagnostics{log: logger}
}

func (d *Diagnostics) analysisFault(analysisName string, module ModuleId, event string, r any) {
	d.log.Warn("analysis fault",
		zap.String("analysis", analysisName),
		zap.String("module", string(module)),
		zap.String("event", event),
		zap.Any("recovered", r),
	)
}

func (d *Diagnostics) wrapFault(module ModuleId, export string, err error) {
	d.log.Warn("wrap fault, export left unwrapped",
		zap.String("module", string(module)),
		zap.String("export", export),
		zap.Error(err),
	)
}

func (d *Diagnostics) denied(kind string, module ModuleId, name string) {
	d.log.Info("policy denied",
		zap.String("kind", kind),
		zap.String("module", string(module)),
		zap.String("name", name),
	)
}

func (d *Diagnostics) event(module ModuleId, tag string) {
	d.log.Debug("event recorded",
		zap.String("module", string(module)),
		zap.String("tag", tag),
	)
}

package opticks

import "time"

// ResolutionLogEvent describes one ResolveBoolean/ResolveVariation call.
type ResolutionLogEvent struct {
	Kind      Kind
	ToggleID  string
	UserID    string
	Source    Source
	Value     Value
	Defaulted bool
	Duration  time.Duration
	Err       error
}

// ResolutionLogger records resolution events.
type ResolutionLogger interface {
	LogResolution(ResolutionLogEvent)
}

// ResolutionLoggerFunc adapts a function to ResolutionLogger.
type ResolutionLoggerFunc func(ResolutionLogEvent)

// LogResolution implements ResolutionLogger.
func (f ResolutionLoggerFunc) LogResolution(event ResolutionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopResolutionLogger struct{}

func (noopResolutionLogger) LogResolution(ResolutionLogEvent) {}

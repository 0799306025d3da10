// Package definition holds the small set of interfaces the broker and
// client packages depend on but do not themselves implement, plus the
// default implementations shipped with this module.
package definition

// Logger is the logging interface used throughout the broker and client
// packages. Any component may be handed an alternative implementation;
// NewLogrusLogger is the default.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug turns debug-level logging on or off, per on, and
	// returns the new state.
	ToggleDebug(on bool) bool

	// With returns a derived Logger that attaches the given key/value
	// pair to every subsequent line, without mutating the receiver.
	With(key string, value interface{}) Logger
}

package report

import (
	"fmt"
	"os"
)

// ConfigError is an error in user configuration: the split profile or the
// program description.  The position is optional: a zero line means that no
// position information is available.
type ConfigError struct {
	// The path to the erroneous configuration file.
	Path string

	// The one-indexed line and column of the erroneous entry.
	Line, Col int

	// The error message.
	Message string
}

func (ce *ConfigError) Error() string {
	if ce.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", ce.Path, ce.Line, ce.Col, ce.Message)
	}

	if ce.Path != "" {
		return fmt.Sprintf("%s: %s", ce.Path, ce.Message)
	}

	return ce.Message
}

// RaiseConfig creates a new configuration error.
func RaiseConfig(path string, line, col int, msg string, args ...interface{}) *ConfigError {
	return &ConfigError{
		Path:    path,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf(msg, args...),
	}
}

// -----------------------------------------------------------------------------

// InternalError is an internal compiler error: a violated invariant of the
// splitter itself.  It is raised as a panic by ICE and recovered by
// CatchErrors.
type InternalError struct {
	Message string
}

func (ie *InternalError) Error() string {
	return "internal compiler error: " + ie.Message
}

// ICE raises an internal compiler error.  These are errors that specifically
// result from a bug or unexpected condition occurring within the splitter:
// they are not intended to ever happen.
func ICE(message string, args ...interface{}) {
	panic(&InternalError{Message: fmt.Sprintf(message, args...)})
}

// -----------------------------------------------------------------------------

// ReportICE reports an internal compiler error.  These errors are always
// displayed regardless of log level.
func ReportICE(message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.isErr = true

	displayICE(fmt.Sprintf(message, args...))
}

// ReportFatal reports a fatal error.  These are errors that should cause all
// splitting to stop immediately: unreadable input files, unwritable output
// directories, etc.
func ReportFatal(message string, args ...interface{}) {
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayFatal(fmt.Sprintf(message, args...))
	}

	os.Exit(1)
}

// ReportConfigError reports an error in user configuration.
func ReportConfigError(cerr *ConfigError) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.isErr = true

	if rep.logLevel > LogLevelSilent {
		displayConfigError(cerr)
	}
}

// ReportStdError reports a non-fatal, standard Go error.  The tag describes
// what the driver was doing when the error occurred.
func ReportStdError(tag string, err error) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.isErr = true

	if rep.logLevel > LogLevelSilent {
		displayStdError(tag, err)
	}
}

// ReportWarning reports a warning message.
func ReportWarning(message string, args ...interface{}) {
	if rep.logLevel > LogLevelError {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayWarning(fmt.Sprintf(message, args...))
	}
}

// ReportInfo reports an informational message.  It is only displayed at the
// verbose log level.
func ReportInfo(tag, message string, args ...interface{}) {
	if rep.logLevel >= LogLevelVerbose {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayInfo(tag, fmt.Sprintf(message, args...))
	}
}

// -----------------------------------------------------------------------------

// AnyErrors returns whether or not any errors were detected.
func AnyErrors() bool {
	return rep.isErr
}

// -----------------------------------------------------------------------------

// CatchErrors catches any errors thrown by a `panic` during a stage of
// splitting. In effect, this handler determines when any errors
// "unrecoverable" within a given subsection of the splitter should stop
// bubbling.
// NB: This function must ALWAYS be deferred.
func CatchErrors() {
	if x := recover(); x != nil {
		if ierr, ok := x.(*InternalError); ok {
			ReportICE("%s", ierr.Message)
		} else if cerr, ok := x.(*ConfigError); ok {
			ReportConfigError(cerr)
		} else if serr, ok := x.(error); ok {
			ReportStdError("Error", serr)
		} else {
			ReportFatal("%v", x)
		}
	}
}

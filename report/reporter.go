package report

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Reporter is responsible for reporting errors, warnings, and other kinds of
// messages to the user during program execution.  The reporter respects the set
// log level and is synchronized: its methods can be safely called from multiple
// goroutines.
type Reporter struct {
	// The mutex used to synchonize different error method calls.
	m *sync.Mutex

	// The selected log level of the reporter.  This must be one of the
	// enumerated log levels below.
	logLevel int

	// Indicates whether or not an error has been detected.
	isErr bool
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only errors to the user.
	LogLevelWarn           // Displays only warnings and errors to the user.
	LogLevelVerbose        // Displays all splitter messages to the user (default).
)

// logLevelNames maps the names accepted on the command line to log levels.
var logLevelNames = map[string]int{
	"silent":  LogLevelSilent,
	"error":   LogLevelError,
	"warn":    LogLevelWarn,
	"verbose": LogLevelVerbose,
}

// LogLevelNames returns the names of the log levels in ascending order.
func LogLevelNames() []string {
	return []string{"silent", "error", "warn", "verbose"}
}

// LogLevelFromName converts a log level name into a log level.  Unknown names
// select the verbose log level.
func LogLevelFromName(name string) int {
	if lvl, ok := logLevelNames[name]; ok {
		return lvl
	}

	return LogLevelVerbose
}

// rep is the global reporter instance.  It starts out silent so that library
// code used without a driver (eg. in tests) never prints.
var rep = &Reporter{
	m:        &sync.Mutex{},
	logLevel: LogLevelSilent,
}

// InitReporter initializes the global error reporter to the given log level.
// Colored output is disabled when standard out is not a terminal.
func InitReporter(logLevel int) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.logLevel = logLevel
	rep.isErr = false

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		pterm.DisableColor()
	}
}

// ShouldLogVerbose returns whether informational messages are displayed.
func ShouldLogVerbose() bool {
	return rep.logLevel >= LogLevelVerbose
}

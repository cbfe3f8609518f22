package report

import (
	"io"

	"github.com/rs/zerolog"
)

// debugLogger receives the structured diagnostics of the splitter: demotion
// counts, merge decisions, fragment sizes.  It discards everything until debug
// output is enabled.
var debugLogger = zerolog.Nop()

// EnableDebug routes debug diagnostics to w in human readable form.
func EnableDebug(w io.Writer) {
	debugLogger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Logger()
}

// Debug returns the debug diagnostics logger.
func Debug() zerolog.Logger {
	return debugLogger
}

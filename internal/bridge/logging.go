package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Structured logging for the bridge core.
 *
 * Description:	The original textcolor.c/dw_printf pair picked a
 *		color per message category (info, error, debug, xmit)
 *		and wrote to stdout. We keep the "one call site, one
 *		severity" habit but route it through a real structured
 *		logger so multi-process debugging (server log
 *		interleaved with child log) is greppable by component.
 *
 *------------------------------------------------------------------*/

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// componentLogger mirrors the teacher's per-subsystem dw_printf call
// sites, just with a component field instead of a terminal color.
func componentLogger(component string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	return l.With("component", component)
}

// SetGlobalLevel sets the level of charmbracelet/log's default logger.
// Loggers made by componentLogger are independent of it and keep their
// own (Info) level. Bridge binaries call this once from their
// flag-parsing step.
func SetGlobalLevel(level log.Level) {
	log.SetLevel(level)
}

// discardLogger returns a component logger that drops all output.
func discardLogger(component string) *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{}).With("component", component)
}

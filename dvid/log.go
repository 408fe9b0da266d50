package dvid

import (
	"log"
	"time"
)

// ModeFlag is a logging severity.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var modeNames = [...]string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL", "SILENT"}

func (m ModeFlag) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "UNKNOWN"
}

var (
	// Verbose is set when we want to be exceptionally verbose.
	Verbose bool

	// mode is the minimum severity that will be logged.
	mode = InfoMode

	logger Logger = stdLogger{}
)

// Logger receives client log messages.  Each method formats like fmt.Printf.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the lowest severity that is logged.  SilentMode turns off logging.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

func LogMode() ModeFlag {
	return mode
}

// SetLogger replaces the package-level logger.  A nil logger restores the
// standard log package output.
func SetLogger(l Logger) {
	if l == nil {
		logger = stdLogger{}
		return
	}
	logger = l
}

// logf sends a message to l if its severity passes the current mode.
func logf(l Logger, severity ModeFlag, format string, args ...interface{}) {
	if severity < mode {
		return
	}
	switch severity {
	case DebugMode:
		l.Debugf(format, args...)
	case InfoMode:
		l.Infof(format, args...)
	case WarningMode:
		l.Warningf(format, args...)
	case ErrorMode:
		l.Errorf(format, args...)
	case CriticalMode:
		l.Criticalf(format, args...)
	}
}

func Debugf(format string, args ...interface{})    { logf(logger, DebugMode, format, args...) }
func Infof(format string, args ...interface{})     { logf(logger, InfoMode, format, args...) }
func Warningf(format string, args ...interface{})  { logf(logger, WarningMode, format, args...) }
func Errorf(format string, args ...interface{})    { logf(logger, ErrorMode, format, args...) }
func Criticalf(format string, args ...interface{}) { logf(logger, CriticalMode, format, args...) }

// Shutdown closes any log file in use.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since its creation to each message, e.g.,
//
//	timedLog := NewTimeLog()
//	...
//	timedLog.Infof("Read %d blocks", n)
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) logf(severity ModeFlag, format string, args []interface{}) {
	logf(t.logger, severity, format+": %s\n", append(args, time.Since(t.start))...)
}

func (t TimeLog) Debugf(format string, args ...interface{})    { t.logf(DebugMode, format, args) }
func (t TimeLog) Infof(format string, args ...interface{})     { t.logf(InfoMode, format, args) }
func (t TimeLog) Warningf(format string, args ...interface{})  { t.logf(WarningMode, format, args) }
func (t TimeLog) Errorf(format string, args ...interface{})    { t.logf(ErrorMode, format, args) }
func (t TimeLog) Criticalf(format string, args ...interface{}) { t.logf(CriticalMode, format, args) }

// stdLogger sends messages via the standard log package, prefixed by severity.
type stdLogger struct{}

func (stdLogger) printf(severity ModeFlag, format string, args []interface{}) {
	log.Printf(" "+severity.String()+" "+format, args...)
}

func (s stdLogger) Debugf(format string, args ...interface{})    { s.printf(DebugMode, format, args) }
func (s stdLogger) Infof(format string, args ...interface{})     { s.printf(InfoMode, format, args) }
func (s stdLogger) Warningf(format string, args ...interface{})  { s.printf(WarningMode, format, args) }
func (s stdLogger) Errorf(format string, args ...interface{})    { s.printf(ErrorMode, format, args) }
func (s stdLogger) Criticalf(format string, args ...interface{}) { s.printf(CriticalMode, format, args) }

func (stdLogger) Shutdown() {}

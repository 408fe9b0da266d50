package dvid

import (
	"fmt"
	"log"

	"github.com/natefinch/lumberjack"
)

// LogConfig specifies an optional rotating log file.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

// fileLogger writes through the standard log package into a rotating file.
type fileLogger struct {
	stdLogger
	*lumberjack.Logger
}

// SetLogger creates a logger that saves to a rotating log file.  If no log file
// is specified, messages continue to go to stderr.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Debugf("Sending log messages to stderr since no log file specified.\n")
		return
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(l)
	SetLogger(fileLogger{Logger: l})
}

func (flog fileLogger) Shutdown() {
	log.Printf("Closing log file...\n")
	if flog.Logger != nil {
		flog.Logger.Close()
	}
}

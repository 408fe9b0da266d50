package dvid

import (
	"fmt"
	"strings"
	"testing"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) record(severity, format string, args []interface{}) {
	r.lines = append(r.lines, severity+" "+fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Debugf(format string, args ...interface{})    { r.record("debug", format, args) }
func (r *recordingLogger) Infof(format string, args ...interface{})     { r.record("info", format, args) }
func (r *recordingLogger) Warningf(format string, args ...interface{})  { r.record("warning", format, args) }
func (r *recordingLogger) Errorf(format string, args ...interface{})    { r.record("error", format, args) }
func (r *recordingLogger) Criticalf(format string, args ...interface{}) { r.record("critical", format, args) }
func (r *recordingLogger) Shutdown()                                    {}

func TestLogMode(t *testing.T) {
	rec := new(recordingLogger)
	SetLogger(rec)
	defer SetLogger(nil)
	defer SetLogMode(LogMode())

	SetLogMode(WarningMode)
	Debugf("dropped %d", 1)
	Infof("dropped %d", 2)
	Warningf("kept %d", 3)
	Criticalf("kept %d", 4)
	if len(rec.lines) != 2 || rec.lines[0] != "warning kept 3" || rec.lines[1] != "critical kept 4" {
		t.Errorf("bad log filtering: %v\n", rec.lines)
	}

	SetLogMode(DebugMode)
	timedLog := NewTimeLog()
	timedLog.Debugf("read %d blocks", 5)
	last := rec.lines[len(rec.lines)-1]
	if !strings.HasPrefix(last, "debug read 5 blocks: ") {
		t.Errorf("bad timed log message: %q\n", last)
	}

	SetLogMode(SilentMode)
	Criticalf("dropped")
	if len(rec.lines) != 3 {
		t.Errorf("silent mode should drop everything: %v\n", rec.lines)
	}
	if WarningMode.String() != "WARNING" {
		t.Errorf("bad mode name %q\n", WarningMode.String())
	}
}

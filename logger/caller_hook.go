package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when resolving the caller of a log line. The
// metrics package logs on behalf of whoever emitted the metric.
var wrapperPackages = []string{
	"sirupsen/logrus",
	"oiflow/logger.",
	"oiflow/internal/metrics.",
}

func isWrapperFrame(fn string) bool {
	for _, p := range wrapperPackages {
		if strings.Contains(fn, p) {
			return true
		}
	}
	return false
}

// callerHook reports the first frame outside the logging wrappers as the
// entry's caller, so run, source and metric lines point at their emitter.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	if frame, ok := firstForeignFrame(runtime.CallersFrames(pcs[:n])); ok {
		entry.Caller = &frame
	}
	return nil
}

func firstForeignFrame(frames *runtime.Frames) (runtime.Frame, bool) {
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isWrapperFrame(frame.Function) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

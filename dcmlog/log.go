// Package dcmlog provides the verbosity-gated logging helper used
// throughout this module. Grounded on odincare-odicom's dicomlog/log.go,
// restructured around sync/atomic.Int32 instead of the teacher's raw int32 +
// atomic.Load/StoreInt32 pair.
package dcmlog

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// verbosity holds the current log level: the larger the value, the more
// detail is logged; -1 disables Vprintf entirely.
type verbosity struct {
	n atomic.Int32
}

func (v *verbosity) set(l int) { v.n.Store(int32(l)) }
func (v *verbosity) get() int  { return int(v.n.Load()) }

var current verbosity

// SetLevel sets log verbosity. Thread safe.
func SetLevel(l int) {
	current.set(l)
}

// Level returns the current log verbosity. Thread safe.
func Level() int {
	return current.get()
}

// Vprintf logs format/args via logrus if the current level is at least l.
func Vprintf(l int, format string, args ...interface{}) {
	if current.get() >= l {
		logrus.Printf(format, args...)
	}
}

// Warnf always logs at warning level, regardless of the verbosity setting
// — used for conditions a caller should notice (unrecognized transfer
// syntax UID, malformed predicate script, unrecognized method name, frame
// decode failure) even with logging otherwise
// quiesced.
func Warnf(format string, args ...interface{}) {
	logrus.Warnf(format, args...)
}

package governor

import "github.com/sirupsen/logrus"

// Severity classifies diagnostic reports.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// DiagnosticSink receives caught callback faults, capacity drops, and
// emergency flushes. The governor never lets these escape as errors or
// panics; it reports them and keeps going.
type DiagnosticSink interface {
	Report(component, message string, sev Severity)
}

// logDiag is the default DiagnosticSink, routing reports to logrus.
type logDiag struct{}

// NewLogDiagnostics returns a DiagnosticSink backed by logrus.
func NewLogDiagnostics() DiagnosticSink {
	return logDiag{}
}

func (logDiag) Report(component, message string, sev Severity) {
	entry := logrus.WithField("component", component)
	switch sev {
	case SeverityInfo:
		entry.Debug(message)
	case SeverityWarning:
		entry.Warn(message)
	default:
		entry.Error(message)
	}
}

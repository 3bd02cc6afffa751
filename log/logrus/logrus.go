package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/storeclient"
)

var _ storeclient.Logger = Logger{}

// Logger adapts a *logrus.Entry. An "err" field holding an error is attached
// with WithError so hooks keyed on logrus.ErrorKey see it.
type Logger struct{ E *logrus.Entry }

func New(l *logrus.Logger) Logger { return Logger{E: logrus.NewEntry(l)} }

func (l Logger) Debug(msg string, f storeclient.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f storeclient.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f storeclient.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f storeclient.Fields) { l.entry(f).Error(msg) }

func (l Logger) entry(f storeclient.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	var err error
	for k, v := range f {
		if e, ok := v.(error); ok && k == "err" {
			err = e
			continue
		}
		out[k] = v
	}
	e := l.E.WithFields(out)
	if err != nil {
		e = e.WithError(err)
	}
	return e
}

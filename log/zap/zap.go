package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/storeclient"
)

var _ storeclient.Logger = Logger{}

// Logger adapts a *zap.Logger. Error values are attached with zap.NamedError
// so they render under the "<key>" and "<key>Verbose" fields.
type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger { return Logger{L: l.WithOptions(zap.AddCallerSkip(1))} }

func (z Logger) Debug(msg string, f storeclient.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f storeclient.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f storeclient.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f storeclient.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f storeclient.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}

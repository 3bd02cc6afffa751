package storeclient

import "github.com/unkn0wn-root/storeclient/backend"

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is the sink of the connection side channel. Adapters for zap,
// logrus and log/slog live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// notifier turns backend connection events into log lines and hook calls.
// It never feeds back into the caller path.
type notifier struct {
	log   Logger
	hooks Hooks
}

var _ backend.Observer = notifier{}

func (n notifier) ConnectionUp(addr string) {
	n.log.Info("store connection established", Fields{"addr": addr})
	n.hooks.ConnectionUp(addr)
}

func (n notifier) ConnectionLost(addr string, err error) {
	n.log.Error("store connection error", Fields{"addr": addr, "err": err})
	n.hooks.ConnectionLost(addr, err)
}

func (n notifier) commandFailed(op, key string, err error) {
	n.log.Debug("store command failed", Fields{"op": op, "key": key, "err": err})
	n.hooks.CommandFailed(op, key, err)
}

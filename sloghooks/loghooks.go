package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/storeclient"
)

type Options struct {
	// Sampling to avoid floods during outages; 0/1 = log all.
	CommandFailedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	failedCtr atomic.Uint64
}

var _ storeclient.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ConnectionUp(addr string) {
	if h.l == nil {
		return
	}
	h.l.Info("storeclient.connection_up", "addr", addr)
}

func (h *Hooks) ConnectionLost(addr string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("storeclient.connection_lost",
		"addr", addr,
		"err", err)
}

func (h *Hooks) CommandFailed(op, key string, err error) {
	if h.l == nil || !sample(h.opts.CommandFailedEvery, &h.failedCtr) {
		return
	}
	h.l.Warn("storeclient.command_failed",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

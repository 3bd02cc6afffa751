package storeclient

// Hooks lightweight callbacks for connection-level events.
// Implementations MUST be cheap and non-blocking; connection events are
// delivered from the backend's dial and command paths.
type Hooks interface {
	// The backend observed a working connection after none or a lost one.
	ConnectionUp(addr string)

	// The backend observed a transport failure (dial, reset, timeout).
	ConnectionLost(addr string, err error)

	// A Get/Set/Del call failed; op ∈ {"get", "set", "del"}.
	CommandFailed(op, key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ConnectionUp(string)                 {}
func (NopHooks) ConnectionLost(string, error)        {}
func (NopHooks) CommandFailed(string, string, error) {}

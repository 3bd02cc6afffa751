// Package storeclient is a thin client over a key-value store connection:
// a liveness check plus get, set-with-expiry and delete, each mapped to a
// single store command (GET, SETEX, DEL) with no caching, retries or value
// transformation in between.
//
// Components:
//   - Backend: the store connection (Redis/Valkey via go-redis; in-process
//     Ristretto or BigCache; on-disk bbolt).
//   - Logger: leveled sink for the connection side channel.
//   - Hooks: optional callbacks for connection and command failures.
//
// Absence is not an error:
//
//	v, ok, err := c.Get(ctx, "k")
//	switch {
//	case err != nil: // *ConnectionError
//	case !ok:        // key does not exist (or expired)
//	default:         // use v
//	}
//
// Construct one Client per process at startup and pass it to whoever needs it.
package storeclient

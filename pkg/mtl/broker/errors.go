package broker

import "errors"

var (
	// ErrShortRead names a connection that yields fewer bytes than a full
	// frame before failing or closing. The Handler treats a short read as
	// fatal for that connection (§4.2) and never retries it in place; it
	// logs the failure and does not return this error.
	ErrShortRead = errors.New("broker: short read on frame boundary")

	// ErrShortWrite mirrors ErrShortRead for the forwarding path (§4.5),
	// which likewise logs short writes and does not return this error.
	ErrShortWrite = errors.New("broker: short write on frame boundary")

	// ErrShuttingDown names an operation attempted during shutdown. The
	// broker is shut down by cancelling Run's context; no broker function
	// returns this error.
	ErrShuttingDown = errors.New("broker: shutting down")
)

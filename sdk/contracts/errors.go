package contracts

import (
	"errors"
	"fmt"
)

// Error taxonomy for the transport core. Native failures are converted to one
// of these at the adapter boundary; OS error codes never leak to callers.
var (
	// ErrInvalidArgument indicates a caller error: wrong port direction,
	// reuse of a disposed object, or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates an index out of range against the current
	// snapshot. Recoverable: refresh and retry.
	ErrNotFound = errors.New("port not found")

	// ErrOpenFailed indicates the native API rejected an open (device busy,
	// permission denied, or the device vanished between enumerate and open).
	ErrOpenFailed = errors.New("open failed")

	// ErrSendFailed indicates the native write call errored. Reported
	// per-call; the connection stays usable.
	ErrSendFailed = errors.New("send failed")

	// ErrInitFailed indicates adapter or observer construction failed.
	ErrInitFailed = errors.New("initialization failed")
)

// ErrDisposed is returned by any operation on a disposed Observer, Input or
// Output. It is an ErrInvalidArgument: disposed-object reuse is a programming
// error, not a runtime condition.
var ErrDisposed = fmt.Errorf("%w: object disposed", ErrInvalidArgument)

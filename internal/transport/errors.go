package transport

import "errors"

var (
	// ErrPayloadTooLarge is returned when a body exceeds MaxBeaconSize.
	ErrPayloadTooLarge = errors.New("payload exceeds beacon size limit")

	// ErrNotDispatched marks a tier failure that happened before anything
	// was sent, so the next tier may take the payload.
	ErrNotDispatched = errors.New("payload not dispatched")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	errRejected = errors.New("beacon rejected payload")
)

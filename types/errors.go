package types

import "errors"

var (
	// ErrSourceUnavailable covers transport failures, non-2xx responses and fetch timeouts
	ErrSourceUnavailable = errors.New("item source unavailable")

	// ErrSourceProtocol covers responses that cannot be read as a cumulative item list
	ErrSourceProtocol = errors.New("item source protocol error")
)

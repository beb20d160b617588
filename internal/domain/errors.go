package domain

import "errors"

var (
	// ErrNoLivePrice is returned by Start when the feed has not yet produced
	// a sample for the chosen symbol. Recoverable; the caller should wait
	// for the feed and retry.
	ErrNoLivePrice = errors.New("no live price available")

	// ErrInvalidTransition is returned when an operation is attempted in the
	// wrong session state. This is a contract violation by the caller and is
	// surfaced loudly instead of being silently ignored.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrSettlementUnavailable is returned when a session deadline has passed
	// but no price sample could be obtained at all. The session is abandoned
	// rather than settled against a fabricated price.
	ErrSettlementUnavailable = errors.New("settlement price unavailable")

	// ErrPersistence wraps store read/write failures. The session machine
	// treats a failed read as an absent snapshot and keeps running.
	ErrPersistence = errors.New("persistence failure")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrWSDisconnect    = errors.New("websocket disconnected")
)

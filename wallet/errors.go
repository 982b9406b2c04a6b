package wallet

import "errors"

var (
	// ErrSignatureRejected is returned when the user declines to sign.
	ErrSignatureRejected = errors.New("user rejected the signature request")
	// ErrReverted is returned when a transaction was mined with a failed status.
	ErrReverted = errors.New("transaction reverted")
	// ErrNoKey is returned when no signing key is configured.
	ErrNoKey = errors.New("no signing key configured")
)

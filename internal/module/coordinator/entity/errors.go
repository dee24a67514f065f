package entity

import "errors"

// Entity errors.
var (
	// ErrDifferentInstruction is returned when a payment or credit is added
	// to an instruction it was not constructed against.
	ErrDifferentInstruction = errors.New("entity belongs to a different payment instruction")

	// ErrUnknownDataKey is returned when extended data is queried for a key
	// that was never set.
	ErrUnknownDataKey = errors.New("unknown extended data key")

	// ErrEncryptedNotPersisted is returned when a key is flagged for
	// encryption but excluded from persistence; encryption only applies to
	// persisted values.
	ErrEncryptedNotPersisted = errors.New("encryption requires the value to be persisted")
)

package repository

import "errors"

// Sentinel errors for canonical store operations.
var (
	ErrEpochConflict = errors.New("epoch does not follow the current epoch")
	ErrNilSnapshot   = errors.New("nil snapshot")
	ErrUnknownDriver = errors.New("unknown store driver")
)

package domain

import "errors"

// Command and ledger failures reported back to the invoking chat.
// None of these crash the process.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrAlreadyClockedIn   = errors.New("already clocked in")
	ErrNotClockedIn       = errors.New("not clocked in")
	ErrDuplicateOffDay    = errors.New("off day already recorded for this date")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrMissingEvidence    = errors.New("claim requires a proof photo")
	ErrUserNotFound       = errors.New("user not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrRenderFailed       = errors.New("report rendering failed")
)

package library

import (
	"errors"
	"net/netip"
)

var (
	ErrAlreadyCheckedOut = errors.New("already checked out")
	ErrAlreadyCheckedIn  = errors.New("already checked in")
	ErrGuestMismatch     = errors.New("checked out by another guest")

	ErrAlreadyRegistered = errors.New("address already registered")
	ErrNicknameTaken     = errors.New("nickname already taken")
	ErrEmptyNickname     = errors.New("nickname required")
	ErrInvalidAddr       = errors.New("invalid guest address")

	// ErrBookNotFound means a BookID was never issued by this library.
	ErrBookNotFound = errors.New("book not found")
)

// CheckedOutError reports the guest currently holding a book.
// It matches ErrAlreadyCheckedOut under errors.Is.
type CheckedOutError struct {
	By netip.Addr
}

func (e *CheckedOutError) Error() string {
	return "already checked out by " + e.By.String()
}

func (e *CheckedOutError) Is(target error) bool {
	return target == ErrAlreadyCheckedOut
}

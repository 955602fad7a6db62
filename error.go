package slotlog

import "github.com/pkg/errors"

var (
	ErrClosed           = errors.New("closed")
	ErrOpened           = errors.New("opened")
	ErrInvalidGeometry  = errors.New("invalid geometry")
	ErrInvalidTag       = errors.New("invalid tag")
	ErrDuplicateTag     = errors.New("duplicate tag")
	ErrUnregistered     = errors.New("unregistered type")
	ErrUnknownType      = errors.New("unknown type")
	ErrTooLarge         = errors.New("payload too large")
	ErrOutOfRange       = errors.New("out of range")
	ErrBadChecksum      = errors.New("bad checksum")
	ErrTruncated        = errors.New("slot truncated")
	ErrNoRecord         = errors.New("no record")
	ErrEraseFailed      = errors.New("erase failed")
	ErrProgramFailed    = errors.New("program failed")
	ErrWriteFailed      = errors.New("write failed")
	ErrVersionExhausted = errors.New("version exhausted")
)

// Errorf annotates a sentinel error with a formatted message.
// The result matches the sentinel with errors.Is.
func Errorf(sentinel error, format string, args ...any) error {
	return errors.Wrapf(sentinel, format, args...)
}

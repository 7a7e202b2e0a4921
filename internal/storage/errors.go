package storage

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a uniqueness expectation,
// such as a second connection for the same user pair.
var ErrDuplicate = errors.New("duplicate record")

// ErrStale is returned by conditional updates when the row exists but no
// longer holds the expected state.
var ErrStale = errors.New("record state changed")

// ErrConversationTaken is returned by CreateMessage when the conversation id
// is already bound to a different user pair.
var ErrConversationTaken = errors.New("conversation belongs to another pair")

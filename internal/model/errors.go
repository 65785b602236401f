package model

import "errors"

var (
	// ErrNotFound indicates a stored record or backup was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidURL indicates a link URL is not a valid absolute URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrDuplicateName indicates a list with the same name already exists.
	ErrDuplicateName = errors.New("duplicate list name")

	// ErrInvalidName indicates an empty or otherwise unusable list name.
	ErrInvalidName = errors.New("invalid list name")

	// ErrListNotFound indicates the named list does not exist.
	ErrListNotFound = errors.New("list not found")

	// ErrIndexOutOfRange indicates a positional edit against a stale index.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrFormat indicates a malformed import document or stored payload.
	ErrFormat = errors.New("invalid data format")

	// ErrInvalidPayload indicates a drag payload that cannot be applied.
	ErrInvalidPayload = errors.New("invalid drag payload")

	// ErrStorageUnavailable indicates the primary store could not be opened.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

package models

import "errors"

// Domain errors. Packages wrap these with context; callers match with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrUnknownRecipient = errors.New("unknown recipient")
	ErrAlreadyExists    = errors.New("already exists")
)

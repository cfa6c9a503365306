package storage

import (
	"github.com/pkg/errors"
)

// errors
var (
	ErrDoesNotExist  = errors.New("object does not exist")
	ErrInvalidLength = errors.New("invalid length")
	ErrOutOfRange    = errors.New("offset out of range")
)

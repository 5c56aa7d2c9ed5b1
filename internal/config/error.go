package config

import "errors"

var (
	ErrUnknownBackend = errors.New("unknown cache backend")
	ErrMissingValue   = errors.New("value is required")
)

package calendar

import "errors"

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrSelectionIncomplete = errors.New("selection has no checkout yet")
)

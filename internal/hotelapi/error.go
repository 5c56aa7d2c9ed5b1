package hotelapi

import (
	"errors"
	"fmt"
)

var ErrBaseURL = errors.New("invalid base url")

type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %v responded %d: %v", e.URL, e.Code, e.Body)
}

func IsStatusError(err error) *StatusError {
	if err == nil {
		return nil
	}

	var statusError *StatusError

	if errors.As(err, &statusError) {
		return statusError
	}

	return nil
}

package batch

import (
	"errors"
	"fmt"
)

var (
	ErrTransport = errors.New("failure sending HTTP request")
	ErrParse     = errors.New("failure parsing reply")
)

// StatusError is returned when the echo endpoint answers with a non-2xx code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with failure code %d", e.Code)
}

// Outcome is the terminal result of one outbound request. Err is nil on
// success, in which case Value holds the echoed value.
type Outcome struct {
	Query Query
	Value uint32
	Err   error
}

func success(q Query, value uint32) Outcome {
	return Outcome{Query: q, Value: value}
}

func failure(q Query, err error) Outcome {
	return Outcome{Query: q, Err: err}
}

// OK reports whether the request produced a value.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// kind classifies a failure for metrics labels.
func (o Outcome) kind() string {
	var statusErr *StatusError
	switch {
	case o.Err == nil:
		return "success"
	case errors.As(o.Err, &statusErr):
		return "status_error"
	case errors.Is(o.Err, ErrParse):
		return "parse_error"
	default:
		return "transport_error"
	}
}

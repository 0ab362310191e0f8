package ledger

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// EndpointUnavailableError reports a connection, timeout or server side
// failure of a single ledger endpoint. Other endpoints may still serve.
type EndpointUnavailableError struct {
	Endpoint string
	Err      error
}

func (e *EndpointUnavailableError) Error() string {
	return fmt.Sprintf("endpoint %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *EndpointUnavailableError) Unwrap() error {
	return e.Err
}

func IsEndpointUnavailable(err error) bool {
	var unavailable *EndpointUnavailableError
	return errors.As(err, &unavailable)
}

package broadcast

import (
	"fmt"
	"strings"
)

// Attempt is the outcome of submitting a transaction to one endpoint. Code
// is the ledger result code, or the local failure code when the endpoint
// could not be reached or never reported inclusion.
type Attempt struct {
	Endpoint string
	Code     uint32
	RawLog   string
	Err      error
}

func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("%s: code %d: %v", a.Endpoint, a.Code, a.Err)
	}
	return fmt.Sprintf("%s: code %d: %s", a.Endpoint, a.Code, a.RawLog)
}

// NoEndpointSucceededError is returned when every endpoint rejected or failed
// to confirm a transaction.
type NoEndpointSucceededError struct {
	Attempts []Attempt
}

func (e *NoEndpointSucceededError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return "no endpoint accepted the transaction: " + strings.Join(parts, "; ")
}

// RawLogs joins the ledger logs of all attempts.
func (e *NoEndpointSucceededError) RawLogs() string {
	var logs []string
	for _, a := range e.Attempts {
		if a.RawLog != "" {
			logs = append(logs, a.RawLog)
		} else if a.Err != nil {
			logs = append(logs, a.Err.Error())
		}
	}
	return strings.Join(logs, "; ")
}

package provider

import "fmt"

// ManifestRejectedError is a non-2xx answer to a manifest upload. Body is
// the provider's response verbatim.
type ManifestRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ManifestRejectedError) Error() string {
	return fmt.Sprintf("provider rejected manifest, status: %d, body: %s", e.StatusCode, e.Body)
}

// StatusUnavailableError means the provider gave no usable lease status.
// Callers treat it as not ready yet.
type StatusUnavailableError struct {
	Err error
}

func (e *StatusUnavailableError) Error() string {
	return fmt.Sprintf("lease status unavailable: %v", e.Err)
}

func (e *StatusUnavailableError) Unwrap() error {
	return e.Err
}

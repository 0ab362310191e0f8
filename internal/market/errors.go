package market

import "fmt"

// BidTimeoutError means no usable bid arrived within the bid window.
type BidTimeoutError struct {
	DSeq    uint64
	Waited  string
	Invalid int
}

func (e *BidTimeoutError) Error() string {
	if e.Invalid > 0 {
		return fmt.Sprintf("no usable bid for deployment %d after %s, %d malformed bids ignored", e.DSeq, e.Waited, e.Invalid)
	}
	return fmt.Sprintf("no usable bid for deployment %d after %s", e.DSeq, e.Waited)
}

// LeaseRejectedError carries the ledger's reason for refusing a lease.
type LeaseRejectedError struct {
	BidID  string
	Detail string
	Err    error
}

func (e *LeaseRejectedError) Error() string {
	return fmt.Sprintf("lease for bid %s rejected: %s", e.BidID, e.Detail)
}

func (e *LeaseRejectedError) Unwrap() error {
	return e.Err
}

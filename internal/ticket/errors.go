package ticket

import "fmt"

// RejectReason classifies a protocol-level rejection. Rejections are
// terminal for the single action and are surfaced verbatim to the actor;
// nothing in the engine retries them.
type RejectReason string

const (
	RejectAlreadyReplied RejectReason = "already_replied"
	RejectLockedByOther  RejectReason = "locked_by_other"
	RejectNotLocked      RejectReason = "not_locked"
	RejectDeliveryFailed RejectReason = "delivery_failed"
)

// Rejection is an invalid state transition. It is distinct from
// infrastructure failures (ErrNotFound, tabular.ErrUnavailable): the store
// answered, and the answer was no.
type Rejection struct {
	Reason RejectReason
	// LockOwner is the current owner for RejectLockedByOther.
	LockOwner string
	// Cause is the delivery error for RejectDeliveryFailed.
	Cause error
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case RejectLockedByOther:
		return fmt.Sprintf("ticket: locked by %s", r.LockOwner)
	case RejectDeliveryFailed:
		return fmt.Sprintf("ticket: delivery failed: %v", r.Cause)
	default:
		return fmt.Sprintf("ticket: %s", r.Reason)
	}
}

func (r *Rejection) Unwrap() error { return r.Cause }

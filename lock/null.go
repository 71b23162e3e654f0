package lock

import (
	"context"
)

// Null is the disabled mutual-exclusion backend: every Acquire
// succeeds immediately and unconditionally. It backs --disable-one-instance,
// where the operator accepts that more than one process may run the
// job body concurrently.
type Null struct{}

// NewNull returns a Provider that never contends.
func NewNull() *Null { return &Null{} }

func (n *Null) Acquire(ctx context.Context) (*Lease, error) {
	return &Lease{SessionID: "null", TTL: 0, LockDelay: 0}, nil
}

func (n *Null) Release(ctx context.Context, lease *Lease) (bool, error) {
	if lease != nil {
		lease.markReleased()
	}
	return true, nil
}

func (n *Null) Refresh(ctx context.Context, lease *Lease) (bool, error) {
	return true, nil
}

func (n *Null) OwnerInfo(ctx context.Context) (*OwnerInfo, error) {
	return nil, nil
}

var _ Provider = (*Null)(nil)

package gateway

import (
	"context"
	"sync"
)

// InitFunc builds the gateway on first use.
type InitFunc func(ctx context.Context) (*Gateway, error)

// Instance is the process-wide handle reused across serverless invocations.
// Initialization is lazy, lock-guarded, and idempotent; a failed init is
// never cached, so the next invocation retries it.
type Instance struct {
	mu   sync.Mutex
	gw   *Gateway
	init InitFunc
}

func NewInstance(init InitFunc) *Instance {
	return &Instance{init: init}
}

func (i *Instance) Get(ctx context.Context) (*Gateway, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gw != nil {
		return i.gw, nil
	}
	gw, err := i.init(ctx)
	if err != nil {
		return nil, err
	}
	i.gw = gw
	return i.gw, nil
}

package testutil

import (
	"context"
	"sync"
)

// FakeResolver answers host lookups from a fixed table
type FakeResolver struct {
	mu    sync.Mutex
	addrs map[string][]string
	err   error
}

func NewFakeResolver(addrs map[string][]string) *FakeResolver {
	return &FakeResolver{addrs: addrs}
}

func (r *FakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.addrs[host], nil
}

// Fail makes every following lookup return err; nil restores lookups
func (r *FakeResolver) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

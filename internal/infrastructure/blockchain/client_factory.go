package blockchain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var beforeGetEVMClientWriteLockHook = func(string) {}

const defaultDialTimeout = 15 * time.Second

// ClientFactory caches one RPC client per URL. Cached clients are shared
// between requests and pollers; callers must not Close them.
type ClientFactory struct {
	clients     map[string]Client
	dialTimeout time.Duration
	mu          sync.RWMutex
}

// NewClientFactory creates a new client factory
func NewClientFactory() *ClientFactory {
	return &ClientFactory{
		clients:     make(map[string]Client),
		dialTimeout: defaultDialTimeout,
	}
}

// WithDialTimeout bounds the initial dial and chain id lookup.
func (f *ClientFactory) WithDialTimeout(d time.Duration) *ClientFactory {
	if d > 0 {
		f.dialTimeout = d
	}
	return f
}

// GetClient returns the cached client for rpcURL, dialing on first use.
func (f *ClientFactory) GetClient(ctx context.Context, rpcURL string) (Client, error) {
	f.mu.RLock()
	client, ok := f.clients[rpcURL]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	beforeGetEVMClientWriteLockHook(rpcURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double check
	if client, ok := f.clients[rpcURL]; ok {
		return client, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, f.dialTimeout)
	defer cancel()
	newClient, err := NewEVMClient(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create EVM client: %w", err)
	}

	f.clients[rpcURL] = newClient
	return newClient, nil
}

// RegisterClient injects/overrides the cached client for rpcURL.
// Useful for deterministic unit tests.
func (f *ClientFactory) RegisterClient(rpcURL string, client Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[rpcURL] = client
}

// Close closes every cached client.
func (f *ClientFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for url, c := range f.clients {
		c.Close()
		delete(f.clients, url)
	}
}

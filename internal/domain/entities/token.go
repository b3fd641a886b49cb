package entities

import "strings"

// TokenDescriptor describes one bridgeable token and where it lives.
type TokenDescriptor struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	Addresses     map[string]string `json:"addresses"`
	NativeAdapter bool              `json:"nativeAdapter"`
}

// AddressOn returns the token contract on network.
func (t TokenDescriptor) AddressOn(network string) (string, bool) {
	addr, ok := t.Addresses[network]
	if !ok || strings.TrimSpace(addr) == "" {
		return "", false
	}
	return addr, true
}

// UsableOn reports whether the token has an address on network.
func (t TokenDescriptor) UsableOn(network string) bool {
	_, ok := t.AddressOn(network)
	return ok
}

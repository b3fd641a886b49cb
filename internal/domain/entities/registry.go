package entities

import "sort"

// SupportedPair is one allowed transfer direction.
type SupportedPair struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Registry holds the networks, tokens and pairs resolved at startup. It is
// read-only after construction and passed explicitly to the components that
// need it.
type Registry struct {
	networks map[string]NetworkConfig
	tokens   map[string]TokenDescriptor
	pairs    []SupportedPair
}

// NewRegistry keeps only complete networks. Pairs referencing an unknown
// network are kept; lookups of those networks fail at use time.
func NewRegistry(networks []NetworkConfig, tokens []TokenDescriptor, pairs []SupportedPair) *Registry {
	r := &Registry{
		networks: make(map[string]NetworkConfig, len(networks)),
		tokens:   make(map[string]TokenDescriptor, len(tokens)),
		pairs:    append([]SupportedPair(nil), pairs...),
	}
	for _, n := range networks {
		if n.Complete() {
			r.networks[n.Key] = n
		}
	}
	for _, t := range tokens {
		r.tokens[t.ID] = t
	}
	return r
}

func (r *Registry) Network(key string) (NetworkConfig, bool) {
	if r == nil {
		return NetworkConfig{}, false
	}
	n, ok := r.networks[key]
	return n, ok
}

func (r *Registry) Token(id string) (TokenDescriptor, bool) {
	if r == nil {
		return TokenDescriptor{}, false
	}
	t, ok := r.tokens[id]
	return t, ok
}

// NetworkByEID finds the network registered with the endpoint id.
func (r *Registry) NetworkByEID(eid uint32) (NetworkConfig, bool) {
	if r == nil {
		return NetworkConfig{}, false
	}
	for _, n := range r.networks {
		if n.EID == eid {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

// Networks returns registered networks ordered by key.
func (r *Registry) Networks() []NetworkConfig {
	if r == nil {
		return nil
	}
	out := make([]NetworkConfig, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Tokens returns tokens ordered by id.
func (r *Registry) Tokens() []TokenDescriptor {
	if r == nil {
		return nil
	}
	out := make([]TokenDescriptor, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Pairs() []SupportedPair {
	if r == nil {
		return nil
	}
	return append([]SupportedPair(nil), r.pairs...)
}

// IsSupported reports whether source -> destination is an allowed direction.
func (r *Registry) IsSupported(source, destination string) bool {
	if r == nil {
		return false
	}
	for _, p := range r.pairs {
		if p.Source == source && p.Destination == destination {
			return true
		}
	}
	return false
}

package config

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"oft-bridge.backend/internal/domain/entities"
)

// DefaultTokenID names the token built from NETWORK_<KEY>_TOKEN when TOKENS
// is unset.
const DefaultTokenID = "oft"

// NetworkEnv is the raw, unvalidated environment for one network key.
type NetworkEnv struct {
	Key           string
	Name          string
	ChainID       string
	RPCURL        string
	EID           string
	Endpoint      string
	DVN           string
	Executor      string
	Token         string
	ExplorerTxURL string
}

// Presence reports which variables are set without exposing values.
func (n NetworkEnv) Presence() map[string]bool {
	return map[string]bool{
		"name":          n.Name != "",
		"chainId":       n.ChainID != "",
		"rpcUrl":        n.RPCURL != "",
		"eid":           n.EID != "",
		"endpoint":      n.Endpoint != "",
		"dvn":           n.DVN != "",
		"executor":      n.Executor != "",
		"token":         n.Token != "",
		"explorerTxUrl": n.ExplorerTxURL != "",
	}
}

// Network converts the raw values. Unparseable numbers leave the field
// zero so the network shows up as incomplete.
func (n NetworkEnv) Network() entities.NetworkConfig {
	chainID, _ := strconv.ParseInt(n.ChainID, 10, 64)
	eid, _ := strconv.ParseUint(n.EID, 10, 32)
	return entities.NetworkConfig{
		Key:             n.Key,
		Name:            n.Name,
		ChainID:         chainID,
		RPCURL:          n.RPCURL,
		EID:             uint32(eid),
		EndpointAddress: n.Endpoint,
		DVNAddress:      n.DVN,
		ExecutorAddress: n.Executor,
		TokenAddress:    n.Token,
		ExplorerTxURL:   n.ExplorerTxURL,
	}
}

// NetworkKeys returns the keys listed in NETWORKS.
func NetworkKeys() []string {
	return splitList(os.Getenv("NETWORKS"))
}

// LoadNetworkEnv reads NETWORK_<KEY>_* for every key in NETWORKS.
func LoadNetworkEnv() []NetworkEnv {
	keys := NetworkKeys()
	out := make([]NetworkEnv, 0, len(keys))
	for _, key := range keys {
		prefix := "NETWORK_" + envKey(key) + "_"
		out = append(out, NetworkEnv{
			Key:           key,
			Name:          getEnv(prefix+"NAME", ""),
			ChainID:       getEnv(prefix+"CHAIN_ID", ""),
			RPCURL:        getEnv(prefix+"RPC_URL", ""),
			EID:           getEnv(prefix+"EID", ""),
			Endpoint:      getEnv(prefix+"ENDPOINT", ""),
			DVN:           getEnv(prefix+"DVN", ""),
			Executor:      getEnv(prefix+"EXECUTOR", ""),
			Token:         getEnv(prefix+"TOKEN", ""),
			ExplorerTxURL: getEnv(prefix+"EXPLORER_TX_URL", ""),
		})
	}
	return out
}

// LoadTokens reads TOKENS and TOKEN_<ID>_*. Without TOKENS a single token
// is derived from each network's token address.
func LoadTokens(networks []entities.NetworkConfig) []entities.TokenDescriptor {
	ids := splitList(os.Getenv("TOKENS"))
	if len(ids) == 0 {
		addrs := make(map[string]string, len(networks))
		for _, n := range networks {
			if n.TokenAddress != "" {
				addrs[n.Key] = n.TokenAddress
			}
		}
		return []entities.TokenDescriptor{{
			ID:            DefaultTokenID,
			Symbol:        getEnv("TOKEN_SYMBOL", "OFT"),
			Name:          getEnv("TOKEN_NAME", "Omnichain Fungible Token"),
			Addresses:     addrs,
			NativeAdapter: getEnvAsBool("TOKEN_NATIVE_ADAPTER", false),
		}}
	}

	out := make([]entities.TokenDescriptor, 0, len(ids))
	for _, id := range ids {
		prefix := "TOKEN_" + envKey(id) + "_"
		addrs := make(map[string]string)
		for _, n := range networks {
			if addr := getEnv(prefix+"ADDRESS_"+envKey(n.Key), ""); addr != "" {
				addrs[n.Key] = addr
			}
		}
		out = append(out, entities.TokenDescriptor{
			ID:            id,
			Symbol:        getEnv(prefix+"SYMBOL", strings.ToUpper(id)),
			Name:          getEnv(prefix+"NAME", id),
			Addresses:     addrs,
			NativeAdapter: getEnvAsBool(prefix+"NATIVE_ADAPTER", false),
		})
	}
	return out
}

// LoadPairs parses SUPPORTED_PAIRS ("a:b,b:a"). When unset every ordered
// pair of the given networks is allowed.
func LoadPairs(networks []entities.NetworkConfig) []entities.SupportedPair {
	raw := splitList(os.Getenv("SUPPORTED_PAIRS"))
	if len(raw) == 0 {
		keys := make([]string, 0, len(networks))
		for _, n := range networks {
			keys = append(keys, n.Key)
		}
		sort.Strings(keys)
		var out []entities.SupportedPair
		for _, src := range keys {
			for _, dst := range keys {
				if src != dst {
					out = append(out, entities.SupportedPair{Source: src, Destination: dst})
				}
			}
		}
		return out
	}

	out := make([]entities.SupportedPair, 0, len(raw))
	for _, item := range raw {
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			continue
		}
		out = append(out, entities.SupportedPair{
			Source:      strings.TrimSpace(parts[0]),
			Destination: strings.TrimSpace(parts[1]),
		})
	}
	return out
}

// LoadRegistry builds the registry from the environment. Incomplete networks
// are reported in skipped and left out.
func LoadRegistry() (registry *entities.Registry, skipped map[string][]string) {
	skipped = make(map[string][]string)
	var networks []entities.NetworkConfig
	for _, raw := range LoadNetworkEnv() {
		n := raw.Network()
		if missing := n.MissingFields(); len(missing) > 0 {
			skipped[n.Key] = missing
			continue
		}
		networks = append(networks, n)
	}
	return entities.NewRegistry(networks, LoadTokens(networks), LoadPairs(networks)), skipped
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

package entities

import (
	"strings"
)

// NetworkConfig is the immutable per-chain record used by every transfer
// touching the network.
type NetworkConfig struct {
	Key             string `json:"key"`
	Name            string `json:"name"`
	ChainID         int64  `json:"chainId"`
	RPCURL          string `json:"-"`
	EID             uint32 `json:"eid"`
	EndpointAddress string `json:"endpointAddress"`
	DVNAddress      string `json:"dvnAddress"`
	ExecutorAddress string `json:"executorAddress"`
	TokenAddress    string `json:"tokenAddress"`
	ExplorerTxURL   string `json:"explorerTxUrl"`
}

// MissingFields lists the required fields that are empty.
func (n NetworkConfig) MissingFields() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("name", n.Name)
	if n.ChainID <= 0 {
		missing = append(missing, "chainId")
	}
	check("rpcUrl", n.RPCURL)
	if n.EID == 0 {
		missing = append(missing, "eid")
	}
	check("endpointAddress", n.EndpointAddress)
	check("dvnAddress", n.DVNAddress)
	check("executorAddress", n.ExecutorAddress)
	check("tokenAddress", n.TokenAddress)
	check("explorerTxUrl", n.ExplorerTxURL)
	return missing
}

// Complete reports whether the network can take part in a transfer.
func (n NetworkConfig) Complete() bool {
	return len(n.MissingFields()) == 0
}

// TxURL links a transaction on the network's explorer.
func (n NetworkConfig) TxURL(txHash string) string {
	if n.ExplorerTxURL == "" || txHash == "" {
		return ""
	}
	return strings.TrimRight(n.ExplorerTxURL, "/") + "/" + txHash
}

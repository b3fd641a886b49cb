package usecases

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
)

// Route is a validated (source, destination, token) triple.
type Route struct {
	Source      entities.NetworkConfig
	Destination entities.NetworkConfig
	Token       entities.TokenDescriptor
	SourceOFT   common.Address
	DestOFT     common.Address
}

// ResolveRoute checks the pair and token against the registry. It makes no
// network calls.
func ResolveRoute(registry *entities.Registry, source, destination, tokenID string) (*Route, error) {
	source = strings.TrimSpace(source)
	destination = strings.TrimSpace(destination)
	if source == "" || destination == "" {
		return nil, domainerrors.Validation("source and destination networks are required")
	}
	if source == destination {
		return nil, domainerrors.Validation("source and destination networks must differ")
	}

	src, ok := registry.Network(source)
	if !ok {
		return nil, domainerrors.Configuration(fmt.Sprintf("network %q is not configured", source))
	}
	dst, ok := registry.Network(destination)
	if !ok {
		return nil, domainerrors.Configuration(fmt.Sprintf("network %q is not configured", destination))
	}
	if !registry.IsSupported(source, destination) {
		return nil, domainerrors.Validation(fmt.Sprintf("unsupported pair %s -> %s", source, destination))
	}

	token, err := resolveToken(registry, tokenID)
	if err != nil {
		return nil, err
	}
	srcAddr, ok := token.AddressOn(source)
	if !ok {
		return nil, domainerrors.Configuration(fmt.Sprintf("token %s has no address on %s", token.ID, source))
	}
	dstAddr, ok := token.AddressOn(destination)
	if !ok {
		return nil, domainerrors.Configuration(fmt.Sprintf("token %s has no address on %s", token.ID, destination))
	}
	if !common.IsHexAddress(srcAddr) || !common.IsHexAddress(dstAddr) {
		return nil, domainerrors.Configuration(fmt.Sprintf("token %s has an invalid address", token.ID))
	}

	return &Route{
		Source:      src,
		Destination: dst,
		Token:       token,
		SourceOFT:   common.HexToAddress(srcAddr),
		DestOFT:     common.HexToAddress(dstAddr),
	}, nil
}

// resolveToken falls back to the only registered token when id is empty.
func resolveToken(registry *entities.Registry, id string) (entities.TokenDescriptor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		tokens := registry.Tokens()
		if len(tokens) == 1 {
			return tokens[0], nil
		}
		return entities.TokenDescriptor{}, domainerrors.Validation("tokenId is required")
	}
	token, ok := registry.Token(id)
	if !ok {
		return entities.TokenDescriptor{}, domainerrors.Configuration(fmt.Sprintf("token %q is not configured", id))
	}
	return token, nil
}

// parseReceiver accepts a 0x-prefixed 20-byte hex address.
func parseReceiver(value string) (common.Address, error) {
	v := strings.TrimSpace(value)
	if !strings.HasPrefix(v, "0x") && !strings.HasPrefix(v, "0X") {
		return common.Address{}, domainerrors.Validation("receiver must be a 0x-prefixed address")
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, domainerrors.Validation("receiver is not a valid address")
	}
	return common.HexToAddress(v), nil
}

// normalizeTxHash lower-cases a 32-byte hex hash or rejects it.
func normalizeTxHash(value string) (string, error) {
	v := strings.TrimSpace(value)
	if !strings.HasPrefix(v, "0x") && !strings.HasPrefix(v, "0X") {
		return "", domainerrors.Validation("txHash must be 0x-prefixed")
	}
	raw := v[2:]
	if len(raw) != 64 {
		return "", domainerrors.Validation("txHash must be 32 bytes of hex")
	}
	if _, ok := parseHexBytes(raw); !ok {
		return "", domainerrors.Validation("txHash is not valid hex")
	}
	return "0x" + strings.ToLower(raw), nil
}

package usecases

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	domainerrors "oft-bridge.backend/internal/domain/errors"
)

// Signer is the server-held key that submits transfers.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// ParseSigner returns nil, nil for an empty key.
func ParseSigner(hexKey string) (*Signer, error) {
	v := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if v == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(v)
	if err != nil {
		return nil, domainerrors.MissingConfiguration("SENDER_PRIVATE_KEY is not a valid secp256k1 key")
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) transactOpts(ctx context.Context, chainID *big.Int, value *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain id is nil")
	}
	auth, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	auth.Value = value
	return auth, nil
}

func (s *Signer) signLegacy(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewEIP155Signer(chainID), s.key)
}

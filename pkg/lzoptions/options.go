package lzoptions

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TypeThree is the options format version understood by the executor.
const TypeThree uint16 = 3

// ExecutorWorkerID identifies executor directives inside a type-3 payload.
const ExecutorWorkerID uint8 = 1

// Executor option types.
const (
	OptionTypeLzReceive  uint8 = 1
	OptionTypeNativeDrop uint8 = 2
	OptionTypeCompose    uint8 = 3
)

// Defaults used when building the local send options.
const (
	DefaultLzReceiveGas   = 200_000
	DefaultLzReceiveValue = 0
)

const (
	uint128Size = 16
	uint16Size  = 2
	bytes32Size = 32
	headerSize  = 2
	// worker id (1) + length (2)
	tlvPrefixSize = 3
)

var (
	ErrEncodingOverflow = errors.New("option body exceeds 65535 bytes")
	ErrValueOverflow    = errors.New("value does not fit in uint128")
	ErrInvalidOptions   = errors.New("invalid options payload")
	ErrUnknownDirective = errors.New("unknown executor option type")
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Directive is one executor instruction.
type Directive interface {
	OptionType() uint8
	body() ([]byte, error)
}

// LzReceive asks the executor to deliver with the given gas and native value.
type LzReceive struct {
	Gas   *big.Int
	Value *big.Int
}

// NativeDrop asks the executor to send AmountWei of native currency to Recipient.
type NativeDrop struct {
	AmountWei *big.Int
	Recipient common.Address
}

// Compose asks the executor to run the compose call at Index.
type Compose struct {
	Index uint16
	Gas   *big.Int
	Value *big.Int
}

func (LzReceive) OptionType() uint8  { return OptionTypeLzReceive }
func (NativeDrop) OptionType() uint8 { return OptionTypeNativeDrop }
func (Compose) OptionType() uint8    { return OptionTypeCompose }

func (d LzReceive) body() ([]byte, error) {
	gas, err := uint128Bytes(d.Gas)
	if err != nil {
		return nil, fmt.Errorf("lzReceive gas: %w", err)
	}
	if isZero(d.Value) {
		return gas, nil
	}
	value, err := uint128Bytes(d.Value)
	if err != nil {
		return nil, fmt.Errorf("lzReceive value: %w", err)
	}
	return append(gas, value...), nil
}

func (d NativeDrop) body() ([]byte, error) {
	amount, err := uint128Bytes(d.AmountWei)
	if err != nil {
		return nil, fmt.Errorf("nativeDrop amount: %w", err)
	}
	return append(amount, common.LeftPadBytes(d.Recipient.Bytes(), bytes32Size)...), nil
}

func (d Compose) body() ([]byte, error) {
	out := make([]byte, uint16Size, uint16Size+2*uint128Size)
	binary.BigEndian.PutUint16(out, d.Index)
	gas, err := uint128Bytes(d.Gas)
	if err != nil {
		return nil, fmt.Errorf("compose gas: %w", err)
	}
	out = append(out, gas...)
	if isZero(d.Value) {
		return out, nil
	}
	value, err := uint128Bytes(d.Value)
	if err != nil {
		return nil, fmt.Errorf("compose value: %w", err)
	}
	return append(out, value...), nil
}

// Encode serialises directives into a type-3 options payload. Entries keep
// append order; duplicates are written as given.
func Encode(directives ...Directive) ([]byte, error) {
	out := make([]byte, headerSize)
	binary.BigEndian.PutUint16(out, TypeThree)
	for _, d := range directives {
		entry, err := encodeDirective(d)
		if err != nil {
			return nil, err
		}
		out = append(out, entry...)
	}
	return out, nil
}

// EncodeHex is Encode with a 0x-prefixed hex result.
func EncodeHex(directives ...Directive) (string, error) {
	raw, err := Encode(directives...)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// DefaultSendOptions returns the local options attached to every send.
func DefaultSendOptions() ([]byte, error) {
	return Encode(LzReceive{
		Gas:   big.NewInt(DefaultLzReceiveGas),
		Value: big.NewInt(DefaultLzReceiveValue),
	})
}

func encodeDirective(d Directive) ([]byte, error) {
	body, err := d.body()
	if err != nil {
		return nil, err
	}
	return encodeTLV(d.OptionType(), body)
}

func encodeTLV(optionType uint8, body []byte) ([]byte, error) {
	// the length field covers the option type byte plus the body
	size := len(body) + 1
	if size > math.MaxUint16 {
		return nil, ErrEncodingOverflow
	}
	out := make([]byte, tlvPrefixSize, tlvPrefixSize+size)
	out[0] = ExecutorWorkerID
	binary.BigEndian.PutUint16(out[1:], uint16(size))
	out = append(out, optionType)
	return append(out, body...), nil
}

// Decode parses a type-3 payload back into directives. Only executor
// entries are understood; other worker ids fail.
func Decode(raw []byte) ([]Directive, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidOptions)
	}
	if v := binary.BigEndian.Uint16(raw[:headerSize]); v != TypeThree {
		return nil, fmt.Errorf("%w: unsupported type %d", ErrInvalidOptions, v)
	}

	var out []Directive
	cursor := headerSize
	for cursor < len(raw) {
		if len(raw)-cursor < tlvPrefixSize+1 {
			return nil, fmt.Errorf("%w: truncated entry at %d", ErrInvalidOptions, cursor)
		}
		if raw[cursor] != ExecutorWorkerID {
			return nil, fmt.Errorf("%w: worker id %d at %d", ErrInvalidOptions, raw[cursor], cursor)
		}
		size := int(binary.BigEndian.Uint16(raw[cursor+1 : cursor+tlvPrefixSize]))
		start := cursor + tlvPrefixSize
		if size == 0 || start+size > len(raw) {
			return nil, fmt.Errorf("%w: bad length %d at %d", ErrInvalidOptions, size, cursor)
		}
		d, err := decodeDirective(raw[start], raw[start+1:start+size])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		cursor = start + size
	}
	return out, nil
}

// DecodeHex accepts 0x-prefixed or bare hex.
func DecodeHex(value string) ([]Directive, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return Decode(raw)
}

func decodeDirective(optionType uint8, body []byte) (Directive, error) {
	switch optionType {
	case OptionTypeLzReceive:
		switch len(body) {
		case uint128Size:
			return LzReceive{Gas: new(big.Int).SetBytes(body), Value: new(big.Int)}, nil
		case 2 * uint128Size:
			return LzReceive{
				Gas:   new(big.Int).SetBytes(body[:uint128Size]),
				Value: new(big.Int).SetBytes(body[uint128Size:]),
			}, nil
		}
	case OptionTypeNativeDrop:
		if len(body) == uint128Size+bytes32Size {
			return NativeDrop{
				AmountWei: new(big.Int).SetBytes(body[:uint128Size]),
				Recipient: common.BytesToAddress(body[uint128Size:]),
			}, nil
		}
	case OptionTypeCompose:
		switch len(body) {
		case uint16Size + uint128Size:
			return Compose{
				Index: binary.BigEndian.Uint16(body[:uint16Size]),
				Gas:   new(big.Int).SetBytes(body[uint16Size:]),
				Value: new(big.Int),
			}, nil
		case uint16Size + 2*uint128Size:
			return Compose{
				Index: binary.BigEndian.Uint16(body[:uint16Size]),
				Gas:   new(big.Int).SetBytes(body[uint16Size : uint16Size+uint128Size]),
				Value: new(big.Int).SetBytes(body[uint16Size+uint128Size:]),
			}, nil
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDirective, optionType)
	}
	return nil, fmt.Errorf("%w: option type %d with body length %d", ErrInvalidOptions, optionType, len(body))
}

func uint128Bytes(v *big.Int) ([]byte, error) {
	if v == nil {
		return make([]byte, uint128Size), nil
	}
	if v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return nil, ErrValueOverflow
	}
	return common.LeftPadBytes(v.Bytes(), uint128Size), nil
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

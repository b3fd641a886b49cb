package usecases

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	errorStringSelector = "0x08c379a0"
	panicSelector       = "0x4e487b71"
)

var revertHexPattern = regexp.MustCompile(`0x[0-9a-fA-F]{8,}`)

// knownSelectors names reverts that are not part of OFTABI.
var knownSelectors = map[string]string{
	selectorHex("OwnableUnauthorizedAccount(address)"):    "OwnableUnauthorizedAccount",
	selectorHex("EnforcedPause()"):                        "EnforcedPause",
	selectorHex("SafeERC20FailedOperation(address)"):      "SafeERC20FailedOperation",
	selectorHex("ERC20InvalidSender(address)"):            "ERC20InvalidSender",
	selectorHex("ERC20InvalidReceiver(address)"):          "ERC20InvalidReceiver",
	selectorHex("OnlyEndpoint(address)"):                  "OnlyEndpoint",
	selectorHex("InvalidReceiver()"):                      "InvalidReceiver",
	selectorHex("InvalidAmount()"):                        "InvalidAmount",
	selectorHex("Transfer_NativeFailed(address,uint256)"): "Transfer_NativeFailed",
	selectorHex("LZ_ULN_InvalidConfirmations()"):          "LZ_ULN_InvalidConfirmations",
	selectorHex("LZ_ULN_Verifying()"):                     "LZ_ULN_Verifying",
}

// KnownErrorSelectors maps every revert selector the decoder recognises to
// its signature.
func KnownErrorSelectors() map[string]string {
	out := map[string]string{
		errorStringSelector: "Error(string)",
		panicSelector:       "Panic(uint256)",
	}
	for _, parsed := range []abi.ABI{OFTABI, EndpointABI} {
		for _, e := range parsed.Errors {
			out["0x"+hex.EncodeToString(e.ID[:4])] = e.Sig
		}
	}
	for sel, name := range knownSelectors {
		if _, ok := out[sel]; !ok {
			out[sel] = name
		}
	}
	return out
}

// RevertDecoded is the structured form of a revert payload.
type RevertDecoded struct {
	RawHex   string         `json:"rawHex"`
	Selector string         `json:"selector,omitempty"`
	Name     string         `json:"name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// DecodeError turns an RPC/contract error into "Name(arg=value, ...)".
// It returns false when no revert payload can be recognised, in which case
// the caller falls back to a generic message.
func DecodeError(err error) (string, bool) {
	data, ok := revertDataFromError(err)
	if !ok {
		return "", false
	}
	decoded, ok := DecodeRevert(data)
	if !ok {
		return "", false
	}
	return decoded.Message, true
}

// DecodeRevert decodes raw revert bytes against the known error definitions.
func DecodeRevert(data []byte) (RevertDecoded, bool) {
	result := RevertDecoded{RawHex: "0x" + hex.EncodeToString(data)}
	if len(data) < 4 {
		return result, false
	}
	result.Selector = "0x" + hex.EncodeToString(data[:4])

	switch result.Selector {
	case errorStringSelector:
		values, ok := unpackValues(data[4:], []string{"string"})
		if !ok || len(values) != 1 {
			return result, false
		}
		msg, _ := values[0].(string)
		result.Name = "Error"
		result.Args = map[string]any{"message": msg}
		result.Message = "Error: " + msg
		return result, true
	case panicSelector:
		if len(data) < 36 {
			return result, false
		}
		code := new(big.Int).SetBytes(data[4:36])
		result.Name = "Panic"
		result.Args = map[string]any{"code": code.String()}
		result.Message = fmt.Sprintf("Panic(code=%s)", code)
		return result, true
	}

	for name, def := range OFTABI.Errors {
		if !bytes.Equal(def.ID[:4], data[:4]) {
			continue
		}
		values, err := def.Inputs.Unpack(data[4:])
		if err != nil {
			break
		}
		result.Name = name
		result.Args = namedArgs(def.Inputs, values)
		result.Message = formatRevert(name, def.Inputs, values)
		return result, true
	}

	if name, ok := knownSelectors[result.Selector]; ok {
		result.Name = name
		result.Message = name
		return result, true
	}
	return result, false
}

// revertDataFromError looks for revert bytes on rpc.DataError values and,
// failing that, in the error text.
func revertDataFromError(err error) ([]byte, bool) {
	if err == nil {
		return nil, false
	}
	type rpcDataError interface {
		ErrorData() interface{}
	}
	var dataErr rpcDataError
	if errors.As(err, &dataErr) {
		if data, ok := parseRevertBytesFromAny(dataErr.ErrorData()); ok {
			return data, true
		}
	}
	for _, candidate := range revertHexPattern.FindAllString(err.Error(), -1) {
		if data, ok := parseHexBytes(candidate); ok {
			return data, true
		}
	}
	return nil, false
}

func parseRevertBytesFromAny(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case string:
		return parseHexBytes(v)
	case []byte:
		if len(v) == 0 {
			return nil, false
		}
		return append([]byte(nil), v...), true
	case map[string]interface{}:
		for _, key := range []string{"data", "result", "error"} {
			if raw, ok := v[key]; ok {
				if data, ok := parseRevertBytesFromAny(raw); ok {
					return data, true
				}
			}
		}
	case map[string]string:
		for _, key := range []string{"data", "result"} {
			if raw, ok := v[key]; ok {
				return parseHexBytes(raw)
			}
		}
	}
	return nil, false
}

func parseHexBytes(raw string) ([]byte, bool) {
	value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if len(value) < 8 || len(value)%2 != 0 {
		return nil, false
	}
	data, err := hex.DecodeString(value)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// unpackValues decodes payload as the given static or dynamic ABI types.
func unpackValues(payload []byte, typeNames []string) ([]any, bool) {
	args := make(abi.Arguments, 0, len(typeNames))
	for _, typeName := range typeNames {
		argType, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return nil, false
		}
		args = append(args, abi.Argument{Type: argType})
	}
	values, err := args.Unpack(payload)
	if err != nil {
		return nil, false
	}
	return values, true
}

func namedArgs(inputs abi.Arguments, values []any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for i, v := range values {
		out[argName(inputs, i)] = formatArg(v)
	}
	return out
}

func formatRevert(name string, inputs abi.Arguments, values []any) string {
	if len(values) == 0 {
		return name
	}
	parts := make([]string, 0, len(values))
	for i, v := range values {
		parts = append(parts, fmt.Sprintf("%s=%s", argName(inputs, i), formatArg(v)))
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func argName(inputs abi.Arguments, i int) string {
	if i < len(inputs) && inputs[i].Name != "" {
		return inputs[i].Name
	}
	return fmt.Sprintf("arg%d", i)
}

func formatArg(v any) string {
	switch val := v.(type) {
	case *big.Int:
		return val.String()
	case common.Address:
		return val.Hex()
	case [32]byte:
		return bytes32Hex(val)
	case []byte:
		return "0x" + hex.EncodeToString(val)
	case []common.Address:
		out := make([]string, len(val))
		for i, a := range val {
			out[i] = a.Hex()
		}
		return "[" + strings.Join(out, ",") + "]"
	default:
		return fmt.Sprint(val)
	}
}

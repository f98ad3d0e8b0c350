package types

import (
	"errors"
	"fmt"
)

// EIP-7702 extended constants.
const (
	// MaxAuthorizationListSize is the maximum number of authorization entries
	// allowed in a single SetCode transaction.
	MaxAuthorizationListSize = 256

	// DelegationCodeLength is the exact length of delegation designator code:
	// 3 bytes prefix (0xef0100) + 20 bytes address.
	DelegationCodeLength = 23

	// PerEmptyAccountCost is kept alongside PerAuthBaseCost in tx_setcode.go;
	// both are consumed by the call frame that applies authorization-list gas.
)

// IsDelegated checks whether the given account code is a delegation designator.
// If so, it returns the delegated-to address.
func IsDelegated(code []byte) (Address, bool) {
	if len(code) != DelegationCodeLength {
		return Address{}, false
	}
	return ParseDelegation(code)
}

// ResolveDelegationChain follows a single EIP-7702 delegation hop from
// startCode. Per EIP-7702, delegation designators never chain: the target
// account's code is used as-is, even if it is itself a delegation designator.
// This reports that case as an error rather than silently following it,
// so callers can decide whether to treat the target as having empty code.
func ResolveDelegationChain(startCode []byte, codeLookup func(Address) []byte, maxDepth int) (Address, int, error) {
	target, ok := ParseDelegation(startCode)
	if !ok {
		return Address{}, 0, errors.New("setcode: not a delegation")
	}
	nextCode := codeLookup(target)
	if HasDelegationPrefix(nextCode) {
		return target, 1, fmt.Errorf("setcode: delegation target %s is itself delegated", target.Hex())
	}
	return target, 1, nil
}

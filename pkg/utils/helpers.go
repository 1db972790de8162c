// Package utils provides utility functions and constants for common operations
// throughout the application.
package utils

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Ethereum address constants
var (
	// NullEthereumAddress is the null Ethereum address without the 0x prefix
	NullEthereumAddress = "0000000000000000000000000000000000000000"

	// NullEthereumAddressHex is the null Ethereum address with the 0x prefix
	NullEthereumAddressHex = fmt.Sprintf("0x%s", NullEthereumAddress)

	// NativeTokenAddress is the sentinel address zap providers use for the
	// chain's native asset
	NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
)

// AreAddressesEqual compares two Ethereum addresses for equality, ignoring case.
func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsNativeToken returns true if the address is the native-asset sentinel.
func IsNativeToken(address string) bool {
	return AreAddressesEqual(address, NativeTokenAddress)
}

// ConvertBytesToString converts a byte array to a hexadecimal string with 0x prefix.
func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseBaseUnitAmount parses a non-negative base-unit integer string into a
// big.Int. On-chain quantities are never floats.
func ParseBaseUnitAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base-unit amount '%s'", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative base-unit amount '%s'", s)
	}
	return amount, nil
}

package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex address and returns its EIP-55 checksummed form
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid EVM address: %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

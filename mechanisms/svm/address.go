package svm

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// NormalizeAddress validates a base58 public key and returns its canonical form
func NormalizeAddress(address string) (string, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid Solana address %q: %w", address, err)
	}
	return pk.String(), nil
}

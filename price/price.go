// Package price describes what a resource costs: which token, on which
// network, paid to whom, and how many atomic units.
package price

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/mechanisms/evm"
	"github.com/x402-foundation/x402-paygate/mechanisms/svm"
)

var (
	ErrInvalidAmount      = errors.New("price: invalid amount")
	ErrUnsupportedNetwork = errors.New("price: no token deployment for network")
)

// EIP712Domain carries the token's typed-data domain for EIP-3009 signatures
type EIP712Domain struct {
	Name    string
	Version string
}

// TokenAsset identifies a token contract or mint on a specific network
type TokenAsset struct {
	Network  x402.Network
	Address  string
	Decimals int32
	EIP712   EIP712Domain
}

// HasEIP712 reports whether payments in this token are signed as EIP-712 typed data
func (t TokenAsset) HasEIP712() bool {
	return t.EIP712 != (EIP712Domain{})
}

// PriceTag is one acceptable way to pay: an atomic amount of a token sent to PayTo.
// PriceTag values are comparable and equal tags describe the same offer.
type PriceTag struct {
	PayTo  string
	Amount string // atomic units, base-10
	Token  TokenAsset
}

// NewPriceTag builds a tag from an amount already expressed in atomic units
func NewPriceTag(token TokenAsset, payTo string, atomicAmount string) (PriceTag, error) {
	units, ok := new(big.Int).SetString(atomicAmount, 10)
	if !ok || units.Sign() <= 0 {
		return PriceTag{}, fmt.Errorf("%w: %q is not a positive integer", ErrInvalidAmount, atomicAmount)
	}

	addr, err := NormalizeAddress(token.Network, payTo)
	if err != nil {
		return PriceTag{}, err
	}

	return PriceTag{
		PayTo:  addr,
		Amount: units.String(),
		Token:  token,
	}, nil
}

// TokenDeployment is a token known to exist on a network
type TokenDeployment struct {
	Asset TokenAsset
}

// USDCDeployment returns the USDC deployment for a network
func USDCDeployment(network x402.Network) (TokenDeployment, error) {
	switch network.Family() {
	case x402.FamilyEVM:
		cfg, ok := evm.GetNetworkConfig(network)
		if !ok {
			break
		}
		return TokenDeployment{Asset: TokenAsset{
			Network:  network,
			Address:  cfg.DefaultAsset.Address,
			Decimals: cfg.DefaultAsset.Decimals,
			EIP712: EIP712Domain{
				Name:    cfg.DefaultAsset.Name,
				Version: cfg.DefaultAsset.Version,
			},
		}}, nil
	case x402.FamilySVM:
		cfg, ok := svm.GetNetworkConfig(network)
		if !ok {
			break
		}
		return TokenDeployment{Asset: TokenAsset{
			Network:  network,
			Address:  cfg.DefaultAsset.Address,
			Decimals: cfg.DefaultAsset.Decimals,
		}}, nil
	}
	return TokenDeployment{}, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
}

// PayTo starts a price tag for this deployment
func (d TokenDeployment) PayTo(address string) Builder {
	return Builder{asset: d.Asset, payTo: address}
}

// Builder completes a price tag once the amount is known
type Builder struct {
	asset TokenAsset
	payTo string
}

// Amount sets a human-readable amount such as "0.0025", scaled by the token decimals
func (b Builder) Amount(amount string) (PriceTag, error) {
	units, err := ToAtomicAmount(amount, b.asset.Decimals)
	if err != nil {
		return PriceTag{}, err
	}
	return NewPriceTag(b.asset, b.payTo, units)
}

// AtomicAmount sets the amount in the token's smallest unit
func (b Builder) AtomicAmount(units string) (PriceTag, error) {
	return NewPriceTag(b.asset, b.payTo, units)
}

// ToAtomicAmount converts a decimal amount into atomic units.
// Amounts with more fractional digits than the token supports are rejected.
func ToAtomicAmount(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amount, err)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, amount)
	}

	units := d.Shift(decimals)
	if !units.IsInteger() {
		return "", fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	return units.BigInt().String(), nil
}

// FromAtomicAmount renders atomic units as a decimal amount
func FromAtomicAmount(units string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(units)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidAmount, units, err)
	}
	return d.Shift(-decimals).String(), nil
}

// NormalizeAddress validates a recipient address for the network's family
func NormalizeAddress(network x402.Network, address string) (string, error) {
	switch network.Family() {
	case x402.FamilyEVM:
		return evm.NormalizeAddress(address)
	case x402.FamilySVM:
		return svm.NormalizeAddress(address)
	default:
		return "", fmt.Errorf("%w: %s", x402.ErrUnknownNetwork, network)
	}
}

package evm

import (
	"math/big"

	x402 "github.com/x402-foundation/x402-paygate"
)

const (
	// Default token decimals for USDC
	DefaultDecimals = 6
)

// AssetInfo describes an ERC-20 token that supports EIP-3009 transfers
type AssetInfo struct {
	Address  string
	Name     string // EIP-712 domain name
	Version  string // EIP-712 domain version
	Decimals int32
}

// NetworkConfig holds chain-level settings for an EVM network
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}

// NetworkConfigs maps v1 network names to their configuration.
// Only networks with a known USDC deployment are included.
var NetworkConfigs = map[x402.Network]NetworkConfig{
	x402.NetworkBase: {
		ChainID: big.NewInt(8453),
		DefaultAsset: AssetInfo{
			Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkBaseSepolia: {
		ChainID: big.NewInt(84532),
		DefaultAsset: AssetInfo{
			Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Name:     "USDC",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkAvalanche: {
		ChainID: big.NewInt(43114),
		DefaultAsset: AssetInfo{
			Address:  "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkAvalancheFuji: {
		ChainID: big.NewInt(43113),
		DefaultAsset: AssetInfo{
			Address:  "0x5425890298aed601595a70AB815c96711a31Bc65",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkPolygon: {
		ChainID: big.NewInt(137),
		DefaultAsset: AssetInfo{
			Address:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
			Name:     "USD Coin",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkPolygonAmoy: {
		ChainID: big.NewInt(80002),
		DefaultAsset: AssetInfo{
			Address:  "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
			Name:     "USDC",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkSei: {
		ChainID: big.NewInt(1329),
		DefaultAsset: AssetInfo{
			Address:  "0xe15fC38F6D8c56aF07bbCBe3BAf5708A2Bf42392",
			Name:     "USDC",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkSeiTestnet: {
		ChainID: big.NewInt(1328),
		DefaultAsset: AssetInfo{
			Address:  "0x4fCF1784B31630811181f670Aea7A7bEF803eaED",
			Name:     "USDC",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
	x402.NetworkXDC: {
		ChainID: big.NewInt(50),
		DefaultAsset: AssetInfo{
			Address:  "0x2A8E898b6242355c290E1f4Fc966b8788729A4D4",
			Name:     "Bridged USDC(XDC)",
			Version:  "2",
			Decimals: DefaultDecimals,
		},
	},
}

// GetNetworkConfig returns the configuration for an EVM network
func GetNetworkConfig(network x402.Network) (NetworkConfig, bool) {
	cfg, ok := NetworkConfigs[network]
	return cfg, ok
}

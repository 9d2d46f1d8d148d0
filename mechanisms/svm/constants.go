package svm

import x402 "github.com/x402-foundation/x402-paygate"

const (
	// Default token decimals for USDC
	DefaultDecimals = 6

	// USDCMainnetAddress is the USDC mint on Solana mainnet
	USDCMainnetAddress = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// USDCDevnetAddress is the USDC mint on Solana devnet
	USDCDevnetAddress = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

// AssetInfo describes an SPL token mint
type AssetInfo struct {
	Address  string
	Decimals int32
}

// NetworkConfig holds settings for a Solana cluster
type NetworkConfig struct {
	DefaultAsset AssetInfo
}

// NetworkConfigs maps v1 network names to their configuration
var NetworkConfigs = map[x402.Network]NetworkConfig{
	x402.NetworkSolana: {
		DefaultAsset: AssetInfo{Address: USDCMainnetAddress, Decimals: DefaultDecimals},
	},
	x402.NetworkSolanaDevnet: {
		DefaultAsset: AssetInfo{Address: USDCDevnetAddress, Decimals: DefaultDecimals},
	},
}

// GetNetworkConfig returns the configuration for a Solana network
func GetNetworkConfig(network x402.Network) (NetworkConfig, bool) {
	cfg, ok := NetworkConfigs[network]
	return cfg, ok
}

package x402

import "fmt"

// Network is a v1 network name such as "base-sepolia" or "solana"
type Network string

const (
	NetworkBase          Network = "base"
	NetworkBaseSepolia   Network = "base-sepolia"
	NetworkAvalanche     Network = "avalanche"
	NetworkAvalancheFuji Network = "avalanche-fuji"
	NetworkPolygon       Network = "polygon"
	NetworkPolygonAmoy   Network = "polygon-amoy"
	NetworkSei           Network = "sei"
	NetworkSeiTestnet    Network = "sei-testnet"
	NetworkXDC           Network = "xdc"
	NetworkSolana        Network = "solana"
	NetworkSolanaDevnet  Network = "solana-devnet"
)

// Family groups networks that share an address format and signing model
type Family string

const (
	FamilyEVM Family = "evm"
	FamilySVM Family = "svm"
)

var networkFamilies = map[Network]Family{
	NetworkBase:          FamilyEVM,
	NetworkBaseSepolia:   FamilyEVM,
	NetworkAvalanche:     FamilyEVM,
	NetworkAvalancheFuji: FamilyEVM,
	NetworkPolygon:       FamilyEVM,
	NetworkPolygonAmoy:   FamilyEVM,
	NetworkSei:           FamilyEVM,
	NetworkSeiTestnet:    FamilyEVM,
	NetworkXDC:           FamilyEVM,
	NetworkSolana:        FamilySVM,
	NetworkSolanaDevnet:  FamilySVM,
}

// Known reports whether n is a recognized network
func (n Network) Known() bool {
	_, ok := networkFamilies[n]
	return ok
}

// Family returns the network family, or an empty Family for unknown networks
func (n Network) Family() Family {
	return networkFamilies[n]
}

// ParseNetwork validates a network name
func ParseNetwork(s string) (Network, error) {
	n := Network(s)
	if !n.Known() {
		return "", fmt.Errorf("%w: %s", ErrUnknownNetwork, s)
	}
	return n, nil
}

// Networks returns every recognized network
func Networks() []Network {
	return []Network{
		NetworkBase, NetworkBaseSepolia,
		NetworkAvalanche, NetworkAvalancheFuji,
		NetworkPolygon, NetworkPolygonAmoy,
		NetworkSei, NetworkSeiTestnet,
		NetworkXDC,
		NetworkSolana, NetworkSolanaDevnet,
	}
}

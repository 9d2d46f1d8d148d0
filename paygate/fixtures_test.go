package paygate

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/price"
)

const (
	testEVMPayee = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	testSVMPayee = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	testFeePayer = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func usdcTag(t *testing.T, network x402.Network, payTo, amount string) price.PriceTag {
	t.Helper()

	d, err := price.USDCDeployment(network)
	require.NoError(t, err)
	tag, err := d.PayTo(payTo).Amount(amount)
	require.NoError(t, err)
	return tag
}

func baseSepoliaTag(t *testing.T) price.PriceTag {
	return usdcTag(t, x402.NetworkBaseSepolia, testEVMPayee, "0.0025")
}

func solanaDevnetTag(t *testing.T) price.PriceTag {
	return usdcTag(t, x402.NetworkSolanaDevnet, testSVMPayee, "0.0025")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

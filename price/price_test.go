package price

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-paygate"
	"github.com/x402-foundation/x402-paygate/mechanisms/svm"
)

const (
	evmPayee = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	svmPayee = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

func TestToAtomicAmount(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     string
		wantErr  bool
	}{
		{amount: "0.0025", decimals: 6, want: "2500"},
		{amount: "1", decimals: 6, want: "1000000"},
		{amount: "0.000001", decimals: 6, want: "1"},
		{amount: "12.5", decimals: 18, want: "12500000000000000000"},
		{amount: "0.0000001", decimals: 6, wantErr: true},
		{amount: "0", decimals: 6, wantErr: true},
		{amount: "-1", decimals: 6, wantErr: true},
		{amount: "abc", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToAtomicAmount(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAtomicAmount(t *testing.T) {
	got, err := FromAtomicAmount("2500", 6)
	require.NoError(t, err)
	assert.Equal(t, "0.0025", got)
}

func TestUSDCDeployment(t *testing.T) {
	t.Run("evm carries eip712 domain", func(t *testing.T) {
		d, err := USDCDeployment(x402.NetworkBaseSepolia)
		require.NoError(t, err)
		assert.Equal(t, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", d.Asset.Address)
		assert.Equal(t, EIP712Domain{Name: "USDC", Version: "2"}, d.Asset.EIP712)
		assert.True(t, d.Asset.HasEIP712())
	})

	t.Run("solana has no eip712 domain", func(t *testing.T) {
		d, err := USDCDeployment(x402.NetworkSolanaDevnet)
		require.NoError(t, err)
		assert.Equal(t, svm.USDCDevnetAddress, d.Asset.Address)
		assert.False(t, d.Asset.HasEIP712())
	})

	t.Run("unknown network", func(t *testing.T) {
		_, err := USDCDeployment(x402.Network("eip155:1"))
		assert.True(t, errors.Is(err, ErrUnsupportedNetwork))
	})
}

func TestBuilder(t *testing.T) {
	d, err := USDCDeployment(x402.NetworkBase)
	require.NoError(t, err)

	tag, err := d.PayTo(evmPayee).Amount("0.0025")
	require.NoError(t, err)
	assert.Equal(t, "2500", tag.Amount)
	assert.Equal(t, evmPayee, tag.PayTo)
	assert.Equal(t, d.Asset, tag.Token)

	same, err := d.PayTo(evmPayee).AtomicAmount("2500")
	require.NoError(t, err)
	assert.Equal(t, tag, same, "equal inputs must produce equal tags")

	_, err = d.PayTo(svmPayee).Amount("1")
	assert.Error(t, err, "solana address is not a valid EVM payee")

	sol, err := USDCDeployment(x402.NetworkSolana)
	require.NoError(t, err)
	_, err = sol.PayTo(svmPayee).Amount("1")
	assert.NoError(t, err)
}

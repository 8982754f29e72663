package acapy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleTenant_Headers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("with-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := SingleTenant{APIKey: "admin-key"}.Headers(ctx)
		require.NoError(err)
		assert.Equal(map[string]string{"x-api-key": "admin-key"}, h)
	})
	t.Run("unsecured-admin", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		h, err := SingleTenant{}.Headers(ctx)
		require.NoError(err)
		assert.Empty(h)
	})
}

func TestNewMultiTenant(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		adminURL  string
		walletID  string
		walletKey string
		wantErr   bool
	}{
		{name: "valid", adminURL: "http://agent.test", walletID: "w1", walletKey: "k1"},
		{name: "empty-admin-url", walletID: "w1", walletKey: "k1", wantErr: true},
		{name: "empty-wallet-id", adminURL: "http://agent.test", walletKey: "k1", wantErr: true},
		{name: "empty-wallet-key", adminURL: "http://agent.test", walletID: "w1", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewMultiTenant(tt.adminURL, tt.walletID, tt.walletKey)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestMultiTenant_Headers(t *testing.T) {
	ctx := context.Background()
	t.Run("fetches-and-caches-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		agent := StartTestAgent(t)
		agent.SetTenant("wallet-1", "wallet-key-1", "tenant-token")

		mt, err := NewMultiTenant(agent.Addr(), "wallet-1", "wallet-key-1")
		require.NoError(err)

		h, err := mt.Headers(ctx)
		require.NoError(err)
		assert.Equal("Bearer tenant-token", h["Authorization"])

		// second call reuses the cached token
		h2, err := mt.Headers(ctx)
		require.NoError(err)
		assert.Equal(h, h2)
	})
	t.Run("wrong-wallet-key", func(t *testing.T) {
		require := require.New(t)
		agent := StartTestAgent(t)
		agent.SetTenant("wallet-1", "wallet-key-1", "tenant-token")

		mt, err := NewMultiTenant(agent.Addr(), "wallet-1", "not-the-key")
		require.NoError(err)

		_, err = mt.Headers(ctx)
		require.Error(err)
		assert.ErrorIs(t, err, ErrTenantTokenFailed)
	})
	t.Run("tenant-calls-carry-bearer", func(t *testing.T) {
		require := require.New(t)
		agent := StartTestAgent(t)
		agent.SetTenant("wallet-1", "wallet-key-1", "tenant-token")

		mt, err := NewMultiTenant(agent.Addr(), "wallet-1", "wallet-key-1")
		require.NoError(err)
		client, err := NewClient(&Config{
			AdminURL:        agent.Addr(),
			InvitationLabel: "vc-authn",
			Headers:         mt,
		})
		require.NoError(err)

		_, err = client.GetWalletDID(ctx, false)
		require.NoError(err)
	})
}

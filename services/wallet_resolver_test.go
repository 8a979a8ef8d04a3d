package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
)

func TestResolveWalletsKeepsOrderAndDropsMalformed(t *testing.T) {
	book := stubBook{wallets: []string{
		"0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD",
		"not-an-address",
		"1111111111111111111111111111111111111111",
		"0x123",
		walletB,
	}}
	r := NewWalletResolver(book, quietLogger())

	wallets, err := r.ResolveWallets(context.Background(), "7", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", walletB}, wallets)
}

func TestResolveWalletsTimeoutIsEmpty(t *testing.T) {
	r := NewWalletResolver(stubBook{wallets: []string{walletA}, delay: time.Second}, quietLogger())

	wallets, err := r.ResolveWallets(context.Background(), "7", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestResolveWalletsSurfacesLookupErrors(t *testing.T) {
	for _, cause := range []error{ErrIdentityNotFound, ErrUnexpectedSchema} {
		r := NewWalletResolver(stubBook{err: cause}, quietLogger())

		wallets, err := r.ResolveWallets(context.Background(), "7", time.Second)
		assert.ErrorIs(t, err, cause)
		assert.Nil(t, wallets)
	}
}

func TestNormalizeAddress(t *testing.T) {
	addr, ok := NormalizeAddress("  0xAbCdEf0123456789aBcDeF0123456789AbCdEf01 ")
	require.True(t, ok)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", addr)

	_, ok = NormalizeAddress("0xZZcdef0123456789abcdef0123456789abcdef01")
	assert.False(t, ok)
}

package services

import (
	"context"
	"testing"

	"github.com/huangang/fundgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_LinkReplacesAddress(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db)
	ctx := context.Background()
	user := createUser(t, db, models.RoleUser)

	w, err := svc.LinkWallet(ctx, user.ID, &LinkWalletRequest{Provider: " MetaMask ", Address: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "metamask", w.Provider)

	_, err = svc.LinkWallet(ctx, user.ID, &LinkWalletRequest{Provider: "metamask", Address: "0xdef"})
	require.NoError(t, err)

	addr, err := svc.GetWalletAddress(ctx, user.ID, "METAMASK")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", addr)

	wallets, err := svc.ListWallets(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestWalletService_Errors(t *testing.T) {
	db := newTestDB(t)
	svc := NewWalletService(db)
	ctx := context.Background()

	_, err := svc.GetWalletAddress(ctx, 1, "metamask")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.LinkWallet(ctx, 1, &LinkWalletRequest{Provider: "", Address: "0xabc"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.LinkWallet(ctx, 1, &LinkWalletRequest{Provider: "metamask", Address: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

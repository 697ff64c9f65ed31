package minting

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/platform/solana"
)

type fakeBalance struct {
	lamports uint64
	err      error
}

func (f fakeBalance) GetBalance(context.Context, string) (uint64, error) { return f.lamports, f.err }

type fakeMintAPI struct {
	calls []solana.MintRequest
	err   error
}

func (f *fakeMintAPI) Mint(_ context.Context, req solana.MintRequest) (solana.MintResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return solana.MintResponse{}, f.err
	}
	return solana.MintResponse{Mint: "Mint111", Signature: "sig"}, nil
}

func TestSolanaMinterInsufficientBalance(t *testing.T) {
	api := &fakeMintAPI{}
	m, err := NewSolanaMinter(fakeBalance{lamports: 50_000_000}, api,
		SolanaConfig{Cluster: "devnet", WalletAddress: "Wallet111", MinBalanceSOL: 0.1}, logger.Nop())
	require.NoError(t, err)

	_, err = m.Mint(context.Background(), gateway.MintRequest{MetadataURL: "https://cdn/m.json"})
	require.Error(t, err)
	assert.True(t, gateway.IsMintError(err))
	assert.Contains(t, err.Error(), "insufficient balance")
	assert.Empty(t, api.calls)
}

func TestSolanaMinterMints(t *testing.T) {
	api := &fakeMintAPI{}
	m, err := NewSolanaMinter(fakeBalance{lamports: solana.LamportsPerSOL}, api,
		SolanaConfig{Cluster: "devnet", WalletAddress: "Wallet111", MinBalanceSOL: 0.1}, logger.Nop())
	require.NoError(t, err)

	rec, err := m.Mint(context.Background(), gateway.MintRequest{
		MetadataURL: "https://cdn/m.json", Name: "Artforge #1", Symbol: "AFNFT", RoyaltyBasisPoints: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mint111", rec.RecordID)
	assert.Equal(t, "https://explorer.solana.com/address/Mint111?cluster=devnet", rec.ExplorerURL)
	require.Len(t, api.calls, 1)
	assert.Equal(t, 500, api.calls[0].SellerFeeBasisPoints)
	assert.Equal(t, []solana.Creator{{Address: "Wallet111", Share: 100}}, api.calls[0].Creators)
}

func TestSolanaMinterWrapsFailures(t *testing.T) {
	m, err := NewSolanaMinter(fakeBalance{err: errors.New("rpc down")}, &fakeMintAPI{},
		SolanaConfig{WalletAddress: "Wallet111"}, logger.Nop())
	require.NoError(t, err)
	_, err = m.Mint(context.Background(), gateway.MintRequest{MetadataURL: "u"})
	assert.Equal(t, "solana", gateway.ProviderOf(err))

	m, err = NewSolanaMinter(nil, &fakeMintAPI{err: errors.New("boom")}, SolanaConfig{}, logger.Nop())
	require.NoError(t, err)
	_, err = m.Mint(context.Background(), gateway.MintRequest{MetadataURL: "u"})
	assert.True(t, gateway.IsMintError(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestLedgerMinterAppendsAndResumes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.jsonl")
	m, err := NewLedgerMinter(path, logger.Nop())
	require.NoError(t, err)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	a, err := m.Mint(context.Background(), gateway.MintRequest{MetadataURL: "store://meta1", Name: "A"})
	require.NoError(t, err)
	b, err := m.Mint(context.Background(), gateway.MintRequest{MetadataURL: "store://meta1", Name: "A"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.RecordID, "ledger-"))
	assert.NotEqual(t, a.RecordID, b.RecordID)
	assert.Contains(t, a.ExplorerURL, a.RecordID)

	reopened, err := NewLedgerMinter(path, logger.Nop())
	require.NoError(t, err)
	entries, err := reopened.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[1].Seq)

	c, err := reopened.Mint(context.Background(), gateway.MintRequest{MetadataURL: "store://meta2"})
	require.NoError(t, err)
	entries, err = reopened.Entries()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), entries[2].Seq)
	assert.Equal(t, c.RecordID, entries[2].RecordID)
}

func TestLedgerMinterRejectsEmptyURL(t *testing.T) {
	m, err := NewLedgerMinter(filepath.Join(t.TempDir(), "l.jsonl"), logger.Nop())
	require.NoError(t, err)
	_, err = m.Mint(context.Background(), gateway.MintRequest{})
	assert.True(t, gateway.IsMintError(err))
}

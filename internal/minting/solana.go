package minting

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/platform/solana"
)

type BalanceSource interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

type MintService interface {
	Mint(ctx context.Context, req solana.MintRequest) (solana.MintResponse, error)
}

type SolanaConfig struct {
	Cluster       string
	WalletAddress string
	MinBalanceSOL float64
}

// SolanaMinter mints through the signing service after checking the wallet
// can pay for the transaction.
type SolanaMinter struct {
	log     *logger.Logger
	balance BalanceSource
	api     MintService
	cfg     SolanaConfig
}

func NewSolanaMinter(balance BalanceSource, api MintService, cfg SolanaConfig, log *logger.Logger) (*SolanaMinter, error) {
	if api == nil {
		return nil, fmt.Errorf("mint service required")
	}
	return &SolanaMinter{
		log:     log.With("service", "SolanaMinter"),
		balance: balance,
		api:     api,
		cfg:     cfg,
	}, nil
}

func (m *SolanaMinter) Name() string { return "solana" }

func (m *SolanaMinter) Mint(ctx context.Context, req gateway.MintRequest) (gateway.MintRecord, error) {
	if strings.TrimSpace(req.MetadataURL) == "" {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "metadata url required", nil)
	}
	wallet := strings.TrimSpace(m.cfg.WalletAddress)
	if m.balance != nil && wallet != "" {
		lamports, err := m.balance.GetBalance(ctx, wallet)
		if err != nil {
			return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "balance check failed", err)
		}
		sol := solana.LamportsToSOL(lamports)
		if sol < m.cfg.MinBalanceSOL {
			return gateway.MintRecord{}, gateway.NewMintError(m.Name(),
				fmt.Sprintf("insufficient balance: %g SOL, minimum %g", sol, m.cfg.MinBalanceSOL), nil)
		}
		m.log.Debug("Wallet balance ok", "wallet", wallet, "sol", sol)
	}

	apiReq := solana.MintRequest{
		URI:                  req.MetadataURL,
		Name:                 req.Name,
		Symbol:               req.Symbol,
		SellerFeeBasisPoints: req.RoyaltyBasisPoints,
		Cluster:              m.cfg.Cluster,
	}
	if wallet != "" {
		apiReq.Creators = []solana.Creator{{Address: wallet, Share: 100}}
	}
	resp, err := m.api.Mint(ctx, apiReq)
	if err != nil {
		return gateway.MintRecord{}, gateway.NewMintError(m.Name(), "mint request failed", err)
	}
	m.log.Info("Minted", "mint", resp.Mint, "signature", resp.Signature, "cluster", m.cfg.Cluster)
	return gateway.MintRecord{
		RecordID:    resp.Mint,
		ExplorerURL: solana.ExplorerURL(resp.Mint, m.cfg.Cluster),
	}, nil
}

package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sol "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/yungbote/artforge-backend/internal/platform/httpx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

const LamportsPerSOL = sol.LAMPORTS_PER_SOL

// RPCClient reads wallet state from a Solana JSON-RPC endpoint.
type RPCClient struct {
	log        *logger.Logger
	api        *solrpc.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

func NewRPCClient(url string, timeout time.Duration, maxRetries int, log *logger.Logger) *RPCClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RPCClient{
		log:        log.With("client", "SolanaRPC"),
		api:        solrpc.New(strings.TrimSpace(url)),
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
	}
}

// ParseAddress validates a base58 account address.
func ParseAddress(address string) (sol.PublicKey, error) {
	pk, err := sol.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	return pk, nil
}

// GetBalance returns the confirmed balance of address in lamports.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	pk, err := ParseAddress(address)
	if err != nil {
		return 0, err
	}
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.api.GetBalance(callCtx, pk, solrpc.CommitmentConfirmed)
		cancel()
		if err == nil {
			return out.Value, nil
		}
		if !isRetryable(ctx, err) || attempt >= c.maxRetries {
			return 0, fmt.Errorf("solana getBalance: %w", err)
		}
		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("Solana RPC retrying", "method", "getBalance", "attempt", attempt+1, "sleep", sleepFor.String(), "error", err)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return 0, err
		}
		backoff *= 2
	}
}

// isRetryable treats transport failures and 429/5xx as transient. Node-level
// RPC errors are final.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpx.IsRetryableHTTPStatus(httpErr.Code)
	}
	return httpx.IsRetryableError(err)
}

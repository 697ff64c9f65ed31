package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

const testWallet = "So11111111111111111111111111111111111111112"

type rpcCall struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     any    `json:"id"`
}

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "getBalance" {
			t.Errorf("method = %q", req.Method)
		}
		if len(req.Params) == 0 || req.Params[0] != testWallet {
			t.Errorf("params = %v", req.Params)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"context": map[string]any{"slot": 1}, "value": 250000000},
		})
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, 0, 0, logger.Nop())
	lamports, err := c.GetBalance(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 250_000_000 {
		t.Fatalf("lamports = %d", lamports)
	}
	if sol := LamportsToSOL(lamports); sol != 0.25 {
		t.Fatalf("LamportsToSOL = %v, want 0.25", sol)
	}
}

func TestGetBalanceRejectsMalformedAddress(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	if _, err := NewRPCClient(srv.URL, 0, 2, logger.Nop()).GetBalance(context.Background(), "not-a-key"); err == nil {
		t.Fatalf("expected error for malformed address")
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("hits = %d, want 0", n)
	}
}

func TestGetBalanceRPCErrorIsFinal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req rpcCall
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32602, "message": "Invalid param: WrongSize"},
		})
	}))
	defer srv.Close()

	_, err := NewRPCClient(srv.URL, 0, 2, logger.Nop()).GetBalance(context.Background(), testWallet)
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPC error, got %v", err)
	}
	if rpcErr.Code != -32602 {
		t.Fatalf("code = %d", rpcErr.Code)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("hits = %d, want 1", n)
	}
}

func TestGetBalanceRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		_ = json.NewDecoder(r.Body).Decode(&req)
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"context": map[string]any{"slot": 1}, "value": 7},
		})
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, 0, 1, logger.Nop())
	c.backoff = time.Millisecond
	lamports, err := c.GetBalance(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 7 || hits.Load() != 2 {
		t.Fatalf("lamports=%d hits=%d", lamports, hits.Load())
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := ParseAddress("11111111111111111111111111111111"); err != nil {
		t.Fatalf("system program address rejected: %v", err)
	}
	if _, err := ParseAddress("0OIl"); err == nil {
		t.Fatalf("expected error for non-base58 input")
	}
}

func TestMintAPI(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/mint" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		var req MintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.URI != "https://cdn/meta.json" || req.SellerFeeBasisPoints != 500 {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"mint":"Mint111","signature":"sig"}`))
	}))
	defer srv.Close()

	api := NewMintAPI(srv.URL+"/", "secret", 0, logger.Nop())
	out, err := api.Mint(context.Background(), MintRequest{URI: "https://cdn/meta.json", Name: "n", Symbol: "AFNFT", SellerFeeBasisPoints: 500})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if out.Mint != "Mint111" || hits.Load() != 1 {
		t.Fatalf("mint=%q hits=%d", out.Mint, hits.Load())
	}
}

func TestMintAPINotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewMintAPI(srv.URL, "", 0, logger.Nop()).Mint(context.Background(), MintRequest{URI: "u"}); err == nil {
		t.Fatalf("expected error")
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("hits = %d, want 1", n)
	}
}

func TestExplorerURL(t *testing.T) {
	cases := []struct{ addr, cluster, want string }{
		{"Mint111", "mainnet-beta", "https://explorer.solana.com/address/Mint111"},
		{"Mint111", "devnet", "https://explorer.solana.com/address/Mint111?cluster=devnet"},
		{"mint-123", "Devnet", "https://explorer.solana.com/address/mint-123?cluster=devnet"},
	}
	for _, tc := range cases {
		if got := ExplorerURL(tc.addr, tc.cluster); got != tc.want {
			t.Fatalf("ExplorerURL(%q, %q) = %q, want %q", tc.addr, tc.cluster, got, tc.want)
		}
	}
}

package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/artforge-backend/internal/platform/httpx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type Creator struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// MintRequest is the body of POST {base}/mint on the minting service.
type MintRequest struct {
	URI                  string    `json:"uri"`
	Name                 string    `json:"name"`
	Symbol               string    `json:"symbol"`
	SellerFeeBasisPoints int       `json:"sellerFeeBasisPoints"`
	Creators             []Creator `json:"creators,omitempty"`
	Cluster              string    `json:"cluster,omitempty"`
}

type MintResponse struct {
	Mint      string `json:"mint"`
	Signature string `json:"signature"`
}

// MintAPI talks to the signing service that owns the wallet keypair.
// The backend never holds the private key.
type MintAPI struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewMintAPI(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *MintAPI {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &MintAPI{
		log:        log.With("client", "MintAPI"),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Mint is not retried: a timed-out request may still have landed on chain.
func (c *MintAPI) Mint(ctx context.Context, req MintRequest) (MintResponse, error) {
	var out MintResponse
	body, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mint", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return out, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return out, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &httpx.StatusError{Service: "mint api", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("mint api decode: %w", err)
	}
	if strings.TrimSpace(out.Mint) == "" {
		return out, fmt.Errorf("mint api returned no mint address")
	}
	return out, nil
}

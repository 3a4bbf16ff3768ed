package issuance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"canopy/internal/sentinel"
)

// LedgerClient talks to the external ledger-mint service over HTTP. A
// client-side rate limiter keeps bursts of approvals from tripping the
// ledger's own throttling.
type LedgerClient struct {
	baseURL    string
	contract   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// LedgerOption configures the LedgerClient.
type LedgerOption func(*LedgerClient)

// WithLedgerHTTPClient overrides the underlying HTTP client.
func WithLedgerHTTPClient(hc *http.Client) LedgerOption {
	return func(c *LedgerClient) {
		c.httpClient = hc
	}
}

// WithLedgerTimeout bounds each mint request. Default is 15s.
func WithLedgerTimeout(d time.Duration) LedgerOption {
	return func(c *LedgerClient) {
		c.httpClient.Timeout = d
	}
}

// WithMintRate caps outbound mint calls per second. Default is 5/s, burst 10.
func WithMintRate(perSecond float64, burst int) LedgerOption {
	return func(c *LedgerClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewLedgerClient creates a ledger-mint client bound to a token contract.
func NewLedgerClient(baseURL, contract string, opts ...LedgerOption) *LedgerClient {
	c := &LedgerClient{
		baseURL:    baseURL,
		contract:   contract,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type mintRequestBody struct {
	Recipient    string `json:"recipient"`
	Amount       int64  `json:"amount"`
	EncodedDelta int64  `json:"encoded_delta"`
	ClaimID      string `json:"claim_id"`
	Location     string `json:"location"`
	Verification string `json:"verification"`
	Contract     string `json:"contract"`
}

type mintResponseBody struct {
	Success bool   `json:"success"`
	TokenID string `json:"token_id,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Mint performs one mint call. Recipient addresses are validated before the
// request leaves the process; the returned transaction hash is normalized to
// its canonical 0x-prefixed form.
func (c *LedgerClient) Mint(ctx context.Context, req MintRequest) (*MintReceipt, error) {
	if !common.IsHexAddress(req.Recipient) {
		return nil, fmt.Errorf("recipient %q is not a valid ledger address: %w", req.Recipient, sentinel.ErrInvalidInput)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("mint rate limit wait: %w", err)
	}

	body, err := json.Marshal(mintRequestBody{
		Recipient:    common.HexToAddress(req.Recipient).Hex(),
		Amount:       req.Amount,
		EncodedDelta: req.EncodedDelta,
		ClaimID:      req.ClaimID,
		Location:     req.LocationPayload,
		Verification: req.VerificationPayload,
		Contract:     c.contract,
	})
	if err != nil {
		return nil, fmt.Errorf("encode mint request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/mint", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build mint request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ledger call failed: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var out mintResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode mint response: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("ledger rejected mint: %s: %w", out.Error, sentinel.ErrUnavailable)
	}

	return &MintReceipt{
		TokenID:  out.TokenID,
		TxHash:   common.HexToHash(out.TxHash).Hex(),
		Contract: c.contract,
	}, nil
}

var _ Minter = (*LedgerClient)(nil)

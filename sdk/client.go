// Package sdk provides a Go client for the TrancheFi HTTP API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/openalpha/tranche-protocol/api/types"
)

// Client talks to a TrancheFi API server
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client against the given base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithHTTP creates a client with a caller-supplied HTTP client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Code = "unknown"
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Health checks server liveness
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Price returns the posted oracle price
func (c *Client) Price(ctx context.Context) (*types.Price, error) {
	var out types.Price
	if err := c.do(ctx, http.MethodGet, "/v1/price", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tiers lists the mint tiers and their outstanding lever claims
func (c *Client) Tiers(ctx context.Context) ([]*types.Tier, error) {
	var out struct {
		Tiers []*types.Tier `json:"tiers"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/tiers", nil, &out); err != nil {
		return nil, err
	}
	return out.Tiers, nil
}

// Ledger returns the system-wide claim totals
func (c *Client) Ledger(ctx context.Context) (*types.Ledger, error) {
	var out types.Ledger
	if err := c.do(ctx, http.MethodGet, "/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mint deposits collateral and mints paired stable and lever claims
func (c *Client) Mint(ctx context.Context, req *types.MintRequest) (*types.MintResponse, error) {
	var out types.MintResponse
	if err := c.do(ctx, http.MethodPost, "/v1/mint", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Burn redeems a percentage of a position's paired claims for underlying
func (c *Client) Burn(ctx context.Context, req *types.BurnRequest) (*types.BurnResponse, error) {
	var out types.BurnResponse
	if err := c.do(ctx, http.MethodPost, "/v1/burn", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Position returns one lever claim bucket
func (c *Client) Position(ctx context.Context, positionID uint64) (*types.Position, error) {
	var out struct {
		Position *types.Position `json:"position"`
	}
	path := "/v1/positions/" + strconv.FormatUint(positionID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Position, nil
}

// Positions lists an owner's lever claim buckets
func (c *Client) Positions(ctx context.Context, owner string) ([]*types.Position, error) {
	var out struct {
		Positions []*types.Position `json:"positions"`
	}
	path := "/v1/positions?owner=" + url.QueryEscape(owner)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// RiskStatus returns the live risk classification of a position
func (c *Client) RiskStatus(ctx context.Context, positionID uint64) (*types.RiskStatus, error) {
	var out types.RiskStatus
	path := "/v1/risk/" + strconv.FormatUint(positionID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bark liquidates an undercollateralized position
func (c *Client) Bark(ctx context.Context, req *types.BarkRequest) (*types.LiquidationRecord, error) {
	var out types.LiquidationRecord
	if err := c.do(ctx, http.MethodPost, "/v1/bark", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Liquidations lists recent liquidation records, newest first
func (c *Client) Liquidations(ctx context.Context, limit int) ([]*types.LiquidationRecord, error) {
	var out struct {
		Records []*types.LiquidationRecord `json:"records"`
	}
	path := "/v1/liquidations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Auction returns one auction with its live clearing price
func (c *Client) Auction(ctx context.Context, auctionID uint64) (*types.Auction, error) {
	var out struct {
		Auction *types.Auction `json:"auction"`
	}
	path := "/v1/auctions/" + strconv.FormatUint(auctionID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Auction, nil
}

// Auctions lists the open auctions
func (c *Client) Auctions(ctx context.Context) ([]*types.Auction, error) {
	var out struct {
		Auctions []*types.Auction `json:"auctions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/auctions", nil, &out); err != nil {
		return nil, err
	}
	return out.Auctions, nil
}

// Purchase buys underlying from an open auction at the clearing price
func (c *Client) Purchase(ctx context.Context, req *types.PurchaseRequest) (*types.PurchaseResponse, error) {
	var out types.PurchaseResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auctions/purchase", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

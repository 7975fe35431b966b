// Package client provides a Go client for the CleanFi API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a CleanFi API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new CleanFi client. apiKey is only needed for leaderboard writes.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ActionMetadata is the GET response of an action endpoint
type ActionMetadata struct {
	Type        string `json:"type"`
	Icon        string `json:"icon"`
	Label       string `json:"label"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Links       struct {
		Actions []LinkedAction `json:"actions"`
	} `json:"links"`
}

// LinkedAction is one button of an action card
type LinkedAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

// ActionResponse is the POST response of an action endpoint
type ActionResponse struct {
	Type        string `json:"type"`
	Transaction string `json:"transaction"`
	Message     string `json:"message"`
}

// Transaction is an unsigned transaction for the wallet to sign
type Transaction struct {
	To      string `json:"to"`
	Value   string `json:"value"` // wei, decimal
	ChainID int64  `json:"chainId"`
	Data    string `json:"data"` // 0x-prefixed calldata
}

// WeiValue returns Value as an integer.
func (t *Transaction) WeiValue() (*big.Int, error) {
	v, ok := new(big.Int).SetString(t.Value, 10)
	if !ok {
		return nil, fmt.Errorf("transaction value %q is not a decimal integer", t.Value)
	}
	return v, nil
}

// DecodeTransaction decodes the serialized transaction in an action response.
func (r *ActionResponse) DecodeTransaction() (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal([]byte(r.Transaction), &tx); err != nil {
		return nil, fmt.Errorf("decoding transaction: %w", err)
	}
	return &tx, nil
}

// ActionRules is the body of /actions.json
type ActionRules struct {
	Rules []struct {
		PathPattern string `json:"pathPattern"`
		APIPath     string `json:"apiPath"`
	} `json:"rules"`
}

// Cleanup is an on-chain cleanup record
type Cleanup struct {
	ID        *big.Int `json:"id"`
	Uploader  string   `json:"uploader"`
	ProofRef  string   `json:"proofRef"`
	ProofURL  string   `json:"proofUrl"`
	Upvotes   *big.Int `json:"upvotes"`
	Downvotes *big.Int `json:"downvotes"`
}

// LeaderboardEntry is a contributor's totals
type LeaderboardEntry struct {
	Rank       int    `json:"rank,omitempty"`
	Address    string `json:"address"`
	Cleanups   int64  `json:"cleanups"`
	Votes      int64  `json:"votes"`
	Rewards    string `json:"rewards"`
	RewardsWei string `json:"rewardsWei"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// LeaderboardResponse is the response for listing the leaderboard
type LeaderboardResponse struct {
	Data  []LeaderboardEntry `json:"data"`
	Limit int                `json:"limit"`
}

// LeaderboardUpdate replaces a contributor's totals
type LeaderboardUpdate struct {
	Cleanups   int64  `json:"cleanups"`
	Votes      int64  `json:"votes"`
	RewardsWei string `json:"rewardsWei"`
}

// Identity is the API key a request authenticated with
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
}

// APIError represents an API error response. Action endpoints report only
// a message; Code is then empty.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Preflight sends OPTIONS to an action and returns the protocol headers.
func (c *Client) Preflight(ctx context.Context, action string) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.baseURL+"/api/actions/"+url.PathEscape(action), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.parseError(resp)
	}
	return resp.Header, nil
}

// DescribeAction fetches the metadata of an action card.
func (c *Client) DescribeAction(ctx context.Context, action, cleanupID, voteType string) (*ActionMetadata, error) {
	var resp ActionMetadata
	if err := c.get(ctx, actionPath(action, cleanupID, voteType), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildAction asks an action for its unsigned transaction.
func (c *Client) BuildAction(ctx context.Context, action, cleanupID, voteType string) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.send(ctx, http.MethodPost, actionPath(action, cleanupID, voteType), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ActionRules fetches /actions.json.
func (c *Client) ActionRules(ctx context.Context) (*ActionRules, error) {
	var resp ActionRules
	if err := c.get(ctx, "/actions.json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCleanup reads a cleanup record.
func (c *Client) GetCleanup(ctx context.Context, id string) (*Cleanup, error) {
	var resp Cleanup
	if err := c.get(ctx, "/api/v1/cleanups/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PrepareUpload returns the unsigned uploadCleanup transaction for a proof.
func (c *Client) PrepareUpload(ctx context.Context, proofRef string) (*Transaction, error) {
	var resp Transaction
	body := map[string]string{"proofRef": proofRef}
	if err := c.send(ctx, http.MethodPost, "/api/v1/cleanups", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leaderboard lists the top contributors. A limit of 0 uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) (*LeaderboardResponse, error) {
	path := "/api/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp LeaderboardResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLeaderboardEntry gets one contributor's totals.
func (c *Client) GetLeaderboardEntry(ctx context.Context, address string) (*LeaderboardEntry, error) {
	var resp LeaderboardEntry
	if err := c.get(ctx, "/api/v1/leaderboard/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateLeaderboardEntry replaces one contributor's totals. Requires an API key.
func (c *Client) UpdateLeaderboardEntry(ctx context.Context, address string, update LeaderboardUpdate) (*LeaderboardEntry, error) {
	var resp LeaderboardEntry
	if err := c.send(ctx, http.MethodPut, "/api/v1/leaderboard/"+url.PathEscape(address), update, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WhoAmI reports which API key the server accepted. An invalid key yields
// a 401 APIError.
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	var resp Identity
	if err := c.get(ctx, "/api/v1/auth/whoami", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// actionPath builds /api/actions/<action>, leaving out empty parameters.
func actionPath(action, cleanupID, voteType string) string {
	q := url.Values{}
	if cleanupID != "" {
		q.Set("cleanupId", cleanupID)
	}
	if voteType != "" {
		q.Set("type", voteType)
	}
	path := "/api/actions/" + url.PathEscape(action)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

// parseError understands both {"error":{"code","message"}} and the action
// form {"error":"message"}.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(envelope.Error, &apiErr.Message); err == nil {
		return apiErr
	}
	if err := json.Unmarshal(envelope.Error, apiErr); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

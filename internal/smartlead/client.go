// Package smartlead is the sole gateway to the Smartlead API. It owns
// pagination, retry, response-shape normalization, and batching policy so
// none of that leaks into the reconciliation engine.
package smartlead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/smartlead-sync/internal/pkg/httpretry"
	"github.com/ignite/smartlead-sync/internal/pkg/logger"
)

const (
	// DefaultBaseURL is the fixed Smartlead API root.
	DefaultBaseURL = "https://server.smartlead.ai/api/v1"

	// DefaultPageSize is the inventory page size. Smartlead inventories
	// run to tens of thousands of accounts, so fetches page.
	DefaultPageSize = 100

	// Pagination stops after this many consecutive pages yield no valid
	// records, bounding pathological loops against flaky responses.
	maxEmptyPages = 3

	// Every pacedPageInterval pages the fetch loop yields to the pace
	// limiter, a self-imposed throttle independent of server signals.
	pacedPageInterval = 10

	defaultTimeout = 30 * time.Second
)

// Config holds client settings. APIKey is the only required field.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is the Smartlead API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
	pagePace   *rate.Limiter
}

// NewClient creates a Smartlead client. The API key is trimmed and must be
// non-empty; an empty credential fails with ErrInvalidAPIKey before any
// network activity.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, httpretry.DefaultPolicy()),
		pagePace: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) { c.httpClient = client }

// doRequest performs an authenticated request. The API key travels as the
// api_key query parameter on every call; Smartlead does not use headers
// for auth.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("smartlead: marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("smartlead: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("smartlead request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{
			Method: method,
			Path:   path,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}

	return respBody, nil
}

// FetchCampaignsOptions filters the campaign list.
type FetchCampaignsOptions struct {
	ClientID    int64
	IncludeTags bool
}

// FetchCampaigns retrieves all campaigns visible to the credential.
func (c *Client) FetchCampaigns(ctx context.Context, opts FetchCampaignsOptions) ([]Campaign, error) {
	params := url.Values{}
	if opts.ClientID > 0 {
		params.Set("client_id", strconv.FormatInt(opts.ClientID, 10))
	}
	if opts.IncludeTags {
		params.Set("include_tags", "true")
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/campaigns", params, nil)
	if err != nil {
		return nil, err
	}

	items, err := unwrapList(body)
	if err != nil {
		return nil, err
	}

	campaigns := make([]Campaign, 0, len(items))
	for _, item := range items {
		var campaign Campaign
		if err := json.Unmarshal(item, &campaign); err != nil {
			logger.Warn("skipping malformed campaign record", "error", err)
			continue
		}
		campaigns = append(campaigns, campaign)
	}

	logger.Info("fetched campaigns", "count", len(campaigns))
	return campaigns, nil
}

// FetchAllEmailAccounts retrieves the full sender-account inventory with
// offset pagination. Termination: a page shorter than pageSize, or three
// consecutive pages with no valid records. A single failed page is skipped
// (its offset is passed over) so one bad page cannot sink a large fetch.
func (c *Client) FetchAllEmailAccounts(ctx context.Context, pageSize int) ([]EmailAccount, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []EmailAccount
	offset := 0
	pages := 0
	emptyPages := 0

	for {
		pages++

		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("offset", strconv.Itoa(offset))

		body, err := c.doRequest(ctx, http.MethodGet, "/email-accounts", params, nil)
		if err != nil {
			if ctx.Err() != nil {
				return all, err
			}
			logger.Warn("inventory page fetch failed, skipping", "page", pages, "offset", offset, "error", err)
			offset += pageSize
			emptyPages++
			if emptyPages >= maxEmptyPages {
				break
			}
			continue
		}

		items, err := unwrapList(body)
		if err != nil {
			logger.Warn("inventory page undecodable, skipping", "page", pages, "offset", offset, "error", err)
			offset += pageSize
			emptyPages++
			if emptyPages >= maxEmptyPages {
				break
			}
			continue
		}

		if len(items) == 0 {
			// Empty page: keep probing subsequent offsets in case data
			// resumes, up to the consecutive-empty bound.
			emptyPages++
			if emptyPages >= maxEmptyPages {
				logger.Info("stopping pagination after consecutive empty pages", "pages", pages)
				break
			}
			offset += pageSize
			continue
		}

		accounts, dropped := decodeAccounts(items)
		if dropped > 0 {
			logger.Warn("dropped invalid account records", "page", pages, "dropped", dropped)
		}

		if len(accounts) == 0 {
			emptyPages++
			if emptyPages >= maxEmptyPages {
				logger.Info("stopping pagination after consecutive invalid pages", "pages", pages)
				break
			}
		} else {
			emptyPages = 0
			all = append(all, accounts...)
		}

		// A short raw page means the server ran out of data.
		if len(items) < pageSize {
			break
		}

		offset += pageSize

		if pages%pacedPageInterval == 0 {
			if err := c.pagePace.Wait(ctx); err != nil {
				return all, err
			}
		}
	}

	logger.Info("fetched email account inventory", "accounts", len(all), "pages", pages)
	return all, nil
}

// FetchCampaignEmailAccounts retrieves the accounts already attached to a
// campaign. Unpaginated; same unwrap and validation rules as the full
// inventory fetch.
func (c *Client) FetchCampaignEmailAccounts(ctx context.Context, campaignID int64) ([]EmailAccount, error) {
	path := fmt.Sprintf("/campaigns/%d/email-accounts", campaignID)

	body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	items, err := unwrapList(body)
	if err != nil {
		return nil, err
	}

	accounts, dropped := decodeAccounts(items)
	if dropped > 0 {
		logger.Warn("dropped invalid campaign account records", "campaign_id", campaignID, "dropped", dropped)
	}

	logger.Info("fetched campaign accounts", "campaign_id", campaignID, "count", len(accounts))
	return accounts, nil
}

// AddEmailAccountsToCampaign attaches sender accounts to a campaign. An
// empty id list is a no-op success with a zero count, not an error.
func (c *Client) AddEmailAccountsToCampaign(ctx context.Context, campaignID int64, accountIDs []int64) (AddResult, error) {
	if len(accountIDs) == 0 {
		logger.Warn("no account ids to add", "campaign_id", campaignID)
		return AddResult{OK: true, AddedCount: 0, Message: "no accounts to add"}, nil
	}

	path := fmt.Sprintf("/campaigns/%d/email-accounts", campaignID)
	payload := map[string][]int64{"email_account_ids": accountIDs}

	body, err := c.doRequest(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return AddResult{}, err
	}

	var result AddResult
	if err := json.Unmarshal(body, &result); err != nil {
		return AddResult{}, fmt.Errorf("%w: add result: %v", ErrMalformedResponse, err)
	}
	if result.AddedCount == 0 && result.Accepted() {
		result.AddedCount = len(accountIDs)
	}

	logger.Info("added accounts to campaign", "campaign_id", campaignID, "count", result.AddedCount)
	return result, nil
}

// GetCampaignDetails retrieves a single campaign.
func (c *Client) GetCampaignDetails(ctx context.Context, campaignID int64) (Campaign, error) {
	path := fmt.Sprintf("/campaigns/%d", campaignID)

	body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return Campaign{}, err
	}

	var campaign Campaign
	if err := json.Unmarshal(body, &campaign); err != nil {
		return Campaign{}, fmt.Errorf("%w: campaign details: %v", ErrMalformedResponse, err)
	}
	return campaign, nil
}

// ValidateAPIKey probes the credential with a cheap read. The server is
// authoritative; locally only non-emptiness is enforced.
func (c *Client) ValidateAPIKey(ctx context.Context) bool {
	if _, err := c.FetchCampaigns(ctx, FetchCampaignsOptions{}); err != nil {
		logger.Error("api key validation failed", "error", err)
		return false
	}
	return true
}

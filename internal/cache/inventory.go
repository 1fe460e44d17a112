// Package cache provides time-boxed memoization of the three Smartlead
// read operations and redis persistence for apply-run progress. Freshness
// beats correctness here: a stale read costs a redundant diff entry at
// worst, while refetching a 16k-account inventory costs minutes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/smartlead-sync/internal/pkg/logger"
	"github.com/ignite/smartlead-sync/internal/smartlead"
)

// Freshness windows per operation, matching how often each dataset
// actually changes.
const (
	CampaignsTTL        = 5 * time.Minute
	InventoryTTL        = 10 * time.Minute
	CampaignAccountsTTL = 30 * time.Minute
)

// Inventory is the read side of the Smartlead client.
type Inventory interface {
	FetchCampaigns(ctx context.Context, opts smartlead.FetchCampaignsOptions) ([]smartlead.Campaign, error)
	FetchAllEmailAccounts(ctx context.Context, pageSize int) ([]smartlead.EmailAccount, error)
	FetchCampaignEmailAccounts(ctx context.Context, campaignID int64) ([]smartlead.EmailAccount, error)
}

// InventoryCache memoizes Inventory reads in redis. Cache failures are
// logged and fall through to the source; the cache never turns a working
// fetch into an error.
type InventoryCache struct {
	source Inventory
	rdb    *redis.Client
	scope  string
}

// NewInventoryCache wraps source. Entries are scoped per credential so two
// operators with different keys never share cached inventory; the key is
// hashed before use so it never appears in redis.
func NewInventoryCache(source Inventory, rdb *redis.Client, apiKey string) *InventoryCache {
	sum := sha256.Sum256([]byte(apiKey))
	return &InventoryCache{source: source, rdb: rdb, scope: hex.EncodeToString(sum[:8])}
}

func (c *InventoryCache) key(parts ...interface{}) string {
	key := "smartlead:cache:" + c.scope
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// FetchCampaigns returns the cached campaign list or fetches it.
func (c *InventoryCache) FetchCampaigns(ctx context.Context, opts smartlead.FetchCampaignsOptions) ([]smartlead.Campaign, error) {
	key := c.key("campaigns", opts.ClientID, opts.IncludeTags)

	var cached []smartlead.Campaign
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	campaigns, err := c.source.FetchCampaigns(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, campaigns, CampaignsTTL)
	return campaigns, nil
}

// FetchAllEmailAccounts returns the cached inventory or fetches it.
func (c *InventoryCache) FetchAllEmailAccounts(ctx context.Context, pageSize int) ([]smartlead.EmailAccount, error) {
	key := c.key("accounts", pageSize)

	var cached []smartlead.EmailAccount
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	accounts, err := c.source.FetchAllEmailAccounts(ctx, pageSize)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, accounts, InventoryTTL)
	return accounts, nil
}

// FetchCampaignEmailAccounts returns the cached membership or fetches it.
func (c *InventoryCache) FetchCampaignEmailAccounts(ctx context.Context, campaignID int64) ([]smartlead.EmailAccount, error) {
	key := c.key("campaign_accounts", campaignID)

	var cached []smartlead.EmailAccount
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	accounts, err := c.source.FetchCampaignEmailAccounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, accounts, CampaignAccountsTTL)
	return accounts, nil
}

// InvalidateCampaignAccounts drops the cached membership for a campaign.
// Called after a successful apply so the next preview sees the writes.
func (c *InventoryCache) InvalidateCampaignAccounts(ctx context.Context, campaignID int64) {
	if err := c.rdb.Del(ctx, c.key("campaign_accounts", campaignID)).Err(); err != nil {
		logger.Warn("cache invalidation failed", "campaign_id", campaignID, "error", err)
	}
}

func (c *InventoryCache) lookup(ctx context.Context, key string, out interface{}) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warn("cache entry undecodable, refetching", "key", key, "error", err)
		return false
	}
	return true
}

func (c *InventoryCache) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}

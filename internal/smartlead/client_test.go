package smartlead

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	// Bypass retries so failure tests don't back off.
	client.SetHTTPClient(server.Client())
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	for _, key := range []string{"", "   ", "\t\n"} {
		_, err := NewClient(Config{APIKey: key})
		assert.ErrorIs(t, err, ErrInvalidAPIKey, "key %q", key)
	}
}

func TestNewClientTrimsAPIKey(t *testing.T) {
	client, err := NewClient(Config{APIKey: "  sk-123  "})
	require.NoError(t, err)
	assert.Equal(t, "sk-123", client.apiKey)
}

func TestFetchCampaignsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "/campaigns", r.URL.Path)
		fmt.Fprint(w, `[{"id":1,"name":"Alpha","status":"ACTIVE"},{"id":2,"name":"Beta","status":"PAUSED"}]`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	campaigns, err := client.FetchCampaigns(context.Background(), FetchCampaignsOptions{})
	require.NoError(t, err)

	require.Len(t, campaigns, 2)
	assert.Equal(t, int64(1), campaigns[0].ID)
	assert.Equal(t, "Beta", campaigns[1].Name)
}

func TestFetchCampaignsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("include_tags"))
		assert.Equal(t, "42", r.URL.Query().Get("client_id"))
		fmt.Fprint(w, `{"data":[{"id":7,"name":"Gamma","status":"ACTIVE"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	campaigns, err := client.FetchCampaigns(context.Background(), FetchCampaignsOptions{ClientID: 42, IncludeTags: true})
	require.NoError(t, err)

	require.Len(t, campaigns, 1)
	assert.Equal(t, "Gamma", campaigns[0].Name)
}

func TestFetchCampaignsScalarCoercion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Envelope whose data field is a single object, not an array.
		fmt.Fprint(w, `{"data":{"id":9,"name":"Solo","status":"ACTIVE"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	campaigns, err := client.FetchCampaigns(context.Background(), FetchCampaignsOptions{})
	require.NoError(t, err)

	require.Len(t, campaigns, 1)
	assert.Equal(t, int64(9), campaigns[0].ID)
}

func TestFetchCampaignsNullData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	campaigns, err := client.FetchCampaigns(context.Background(), FetchCampaignsOptions{})
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}

func accountPage(start, n int) []EmailAccount {
	page := make([]EmailAccount, n)
	for i := range page {
		id := int64(start + i + 1)
		page[i] = EmailAccount{ID: id, FromEmail: fmt.Sprintf("sender%d@example.com", id)}
	}
	return page
}

func TestFetchAllEmailAccountsPaginates(t *testing.T) {
	// Pages of 100, 100, 37; the short page terminates the fetch.
	var requests []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		requests = append(requests, offset)

		var n int
		switch offset {
		case 0, 100:
			n = 100
		case 200:
			n = 37
		default:
			t.Errorf("unexpected offset %d", offset)
		}
		json.NewEncoder(w).Encode(accountPage(offset, n))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	accounts, err := client.FetchAllEmailAccounts(context.Background(), 100)
	require.NoError(t, err)

	assert.Len(t, accounts, 237)
	assert.Equal(t, []int{0, 100, 200}, requests)
}

func TestFetchAllEmailAccountsStopsAfterEmptyPages(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	accounts, err := client.FetchAllEmailAccounts(context.Background(), 100)
	require.NoError(t, err)

	assert.Empty(t, accounts)
	assert.Equal(t, 3, hits)
}

func TestFetchAllEmailAccountsDropsInvalidRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"email":"a@example.com"},{"email":"no-id@example.com"},{"id":0},"garbage"]`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	accounts, err := client.FetchAllEmailAccounts(context.Background(), 100)
	require.NoError(t, err)

	require.Len(t, accounts, 1)
	assert.Equal(t, int64(1), accounts[0].ID)
}

func TestFetchAllEmailAccountsSkipsFailedPage(t *testing.T) {
	// Offset 100 fails once; the fetch skips it and carries on, so one
	// bad page cannot sink a large inventory.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		switch offset {
		case 0:
			json.NewEncoder(w).Encode(accountPage(0, 100))
		case 100:
			w.WriteHeader(http.StatusInternalServerError)
		case 200:
			json.NewEncoder(w).Encode(accountPage(200, 5))
		default:
			t.Errorf("unexpected offset %d", offset)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	accounts, err := client.FetchAllEmailAccounts(context.Background(), 100)
	require.NoError(t, err)

	assert.Len(t, accounts, 105)
}

func TestFetchCampaignEmailAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns/55/email-accounts", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":3,"username":"User@Example.com"},{"username":"no-id@example.com"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	accounts, err := client.FetchCampaignEmailAccounts(context.Background(), 55)
	require.NoError(t, err)

	require.Len(t, accounts, 1)
	assert.Equal(t, int64(3), accounts[0].ID)
}

func TestAddEmailAccountsToCampaign(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/campaigns/55/email-accounts", r.URL.Path)

		var payload map[string][]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []int64{10, 11, 12}, payload["email_account_ids"])

		fmt.Fprint(w, `{"ok":true,"added_count":3}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.AddEmailAccountsToCampaign(context.Background(), 55, []int64{10, 11, 12})
	require.NoError(t, err)

	assert.True(t, result.Accepted())
	assert.Equal(t, 3, result.AddedCount)
}

func TestAddEmailAccountsEmptyIsNoOp(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.AddEmailAccountsToCampaign(context.Background(), 55, nil)
	require.NoError(t, err)

	assert.True(t, result.Accepted())
	assert.Zero(t, result.AddedCount)
	assert.Zero(t, hits, "no request should be made for an empty id list")
}

func TestRequestErrorCarriesCause(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchCampaigns(context.Background(), FetchCampaignsOptions{})
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.MethodGet, reqErr.Method)
	assert.Equal(t, "/campaigns", reqErr.Path)
}

func TestGetCampaignDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns/7", r.URL.Path)
		fmt.Fprint(w, `{"id":7,"name":"Gamma","status":"ACTIVE"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	campaign, err := client.GetCampaignDetails(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Gamma", campaign.Name)
}

func TestUnwrapListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[1,2,3]`, 3},
		{"envelope array", `{"data":[1,2]}`, 2},
		{"envelope scalar", `{"data":5}`, 1},
		{"envelope null", `{"data":null}`, 0},
		{"empty object", `{}`, 0},
		{"object without data", `{"id":1}`, 1},
		{"null body", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := unwrapList([]byte(tt.body))
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
		})
	}
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/smartlead-sync/internal/config"
)

// fakeSmartlead is a minimal stand-in for the remote API covering the
// whole wizard flow.
func fakeSmartlead(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /campaigns", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":55,"name":"Spring Launch","status":"ACTIVE"}]}`)
	})
	mux.HandleFunc("GET /campaigns/55", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":55,"name":"Spring Launch","status":"ACTIVE"}`)
	})
	mux.HandleFunc("GET /email-accounts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"email":"a@example.com"},{"id":2,"from_email":"b@example.com"}]`)
	})
	mux.HandleFunc("GET /campaigns/55/email-accounts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"email":"a@example.com"}]`)
	})
	mux.HandleFunc("POST /campaigns/55/email-accounts", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string][]int64
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"added_count":%d}`, len(payload["email_account_ids"]))
	})

	return httptest.NewServer(mux)
}

func newTestServer(t *testing.T, authToken string) (*Server, *httptest.Server) {
	t.Helper()

	remote := fakeSmartlead(t)
	t.Cleanup(remote.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Smartlead.BaseURL = remote.URL
	cfg.Server.AuthToken = authToken

	return NewServer(cfg, rdb, nil), remote
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createSession(t *testing.T, s *Server) string {
	rec := do(t, s, http.MethodPost, "/api/sessions", `{"api_key":"sk-test"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["session_id"].(string)
}

func TestWizardFlow(t *testing.T) {
	s, _ := newTestServer(t, "")
	id := createSession(t, s)

	// Step 1: campaigns.
	rec := do(t, s, http.MethodGet, "/api/sessions/"+id+"/campaigns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	campaigns := decode(t, rec)["campaigns"].([]interface{})
	require.Len(t, campaigns, 1)

	rec = do(t, s, http.MethodPost, "/api/sessions/"+id+"/campaign", `{"campaign_id":55}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Steps 2–3: upload CSV against the fetched inventory.
	csv := "email\nA@Example.com\nb@example.com\nmissing@example.com\n"
	rec = do(t, s, http.MethodPost, "/api/sessions/"+id+"/csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upload := decode(t, rec)
	assert.Equal(t, float64(3), upload["emails"])
	assert.Equal(t, float64(2), upload["mapped"])

	// Step 4: preview.
	rec = do(t, s, http.MethodGet, "/api/sessions/"+id+"/preview", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	analysis := decode(t, rec)["analysis"].(map[string]interface{})
	assert.Equal(t, float64(2), analysis["total_requested"])
	assert.Equal(t, float64(1), analysis["total_to_add"])
	assert.Equal(t, float64(1), analysis["total_already_exists"])

	// Step 5: apply. One batch, so a single advance completes the run.
	rec = do(t, s, http.MethodPost, "/api/sessions/"+id+"/apply", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode(t, rec)
	assert.Equal(t, true, applied["done"])
	run := applied["run"].(map[string]interface{})
	assert.Equal(t, float64(1), run["accounts_added"])

	// Progress endpoint agrees.
	rec = do(t, s, http.MethodGet, "/api/sessions/"+id+"/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["done"])
}

func TestApplyAdvancesOneBatchPerCall(t *testing.T) {
	s, _ := newTestServer(t, "")
	id := createSession(t, s)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+id+"/campaign", `{"campaign_id":55}`).Code)

	csv := "email\nb@example.com\nc-is-missing@example.com\n"
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+id+"/csv", csv).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/sessions/"+id+"/preview", "").Code)

	// batch_size 1 with one id to add: first call completes it.
	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/apply", `{"batch_size":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["done"])

	// Further calls are no-ops on the completed run.
	rec = do(t, s, http.MethodPost, "/api/sessions/"+id+"/apply", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["done"])
}

func TestUploadCSVMissingColumn(t *testing.T) {
	s, _ := newTestServer(t, "")
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/csv", "name,phone\nAlice,555\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPreviewRequiresCampaignAndCSV(t *testing.T) {
	s, _ := newTestServer(t, "")
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+id+"/preview", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/api/sessions/nope/campaigns", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionRequiresKey(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/api/sessions", `{"api_key":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGate(t *testing.T) {
	s, _ := newTestServer(t, "topsecret")

	rec := do(t, s, http.MethodPost, "/api/sessions", `{"api_key":"sk-test"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"api_key":"sk-test"}`))
	req.Header.Set("Authorization", "Bearer topsecret")
	out := httptest.NewRecorder()
	s.Router().ServeHTTP(out, req)
	assert.Equal(t, http.StatusCreated, out.Code)

	// Health stays open.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestReset(t *testing.T) {
	s, _ := newTestServer(t, "")
	id := createSession(t, s)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+id+"/campaign", `{"campaign_id":55}`).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+id+"/reset", "").Code)

	// After a reset the preview precondition fails again.
	rec := do(t, s, http.MethodGet, "/api/sessions/"+id+"/preview", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/smartlead-sync/internal/apply"
	"github.com/ignite/smartlead-sync/internal/cache"
	"github.com/ignite/smartlead-sync/internal/csvsource"
	"github.com/ignite/smartlead-sync/internal/pkg/logger"
	"github.com/ignite/smartlead-sync/internal/reconcile"
	"github.com/ignite/smartlead-sync/internal/smartlead"
)

// maxCSVBytes bounds uploaded CSV bodies.
const maxCSVBytes = 50 << 20

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

// remoteStatus maps a Smartlead client failure to a response code.
func remoteStatus(err error) int {
	var reqErr *smartlead.RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.APIKey == "" {
		req.APIKey = s.cfg.Smartlead.APIKey
	}

	client, err := smartlead.NewClient(smartlead.Config{
		APIKey:  req.APIKey,
		BaseURL: s.cfg.Smartlead.BaseURL,
		Timeout: s.cfg.Smartlead.Timeout(),
	})
	if err != nil {
		writeJSONError(w, "a Smartlead API key is required", http.StatusBadRequest)
		return
	}

	if !client.ValidateAPIKey(r.Context()) {
		writeJSONError(w, "Smartlead rejected the API key", http.StatusUnauthorized)
		return
	}

	inventory := cache.NewInventoryCache(client, s.rdb, req.APIKey)
	sess := s.sessions.Create(client, inventory)

	logger.Info("session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ResetPipeline()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	campaigns, err := sess.Inventory.FetchCampaigns(r.Context(), smartlead.FetchCampaignsOptions{IncludeTags: true})
	if err != nil {
		logger.Error("campaign fetch failed", "session_id", sess.ID, "error", err)
		writeJSONError(w, "fetching campaigns from Smartlead failed", remoteStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

func (s *Server) handleSelectCampaign(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		CampaignID int64 `json:"campaign_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CampaignID <= 0 {
		writeJSONError(w, "invalid campaign ID", http.StatusBadRequest)
		return
	}

	campaign, err := sess.Client.GetCampaignDetails(r.Context(), req.CampaignID)
	if err != nil {
		logger.Error("campaign lookup failed", "campaign_id", req.CampaignID, "error", err)
		writeJSONError(w, "looking up the campaign failed", remoteStatus(err))
		return
	}

	sess.SelectedCampaign = &campaign
	// A new target invalidates any previous analysis and run.
	sess.Analysis = nil
	sess.RunID = ""

	writeJSON(w, http.StatusOK, map[string]interface{}{"campaign": campaign})
}

func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	emails, err := csvsource.ExtractEmails(http.MaxBytesReader(w, r.Body, maxCSVBytes))
	if errors.Is(err, csvsource.ErrMissingEmailColumn) {
		writeJSONError(w, "the CSV has no email column", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		writeJSONError(w, "the CSV could not be parsed", http.StatusUnprocessableEntity)
		return
	}
	if len(emails) == 0 {
		writeJSONError(w, "the CSV contains no valid email addresses", http.StatusUnprocessableEntity)
		return
	}

	accounts, err := sess.Inventory.FetchAllEmailAccounts(r.Context(), s.cfg.Smartlead.PageSize)
	if err != nil {
		logger.Error("inventory fetch failed", "session_id", sess.ID, "error", err)
		writeJSONError(w, "fetching the account inventory failed", remoteStatus(err))
		return
	}

	sess.ResetUpload()
	sess.Emails = emails
	sess.Mappings = reconcile.MapEmailsToIDs(emails, accounts)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"emails":    len(emails),
		"mapped":    len(sess.Mappings),
		"not_found": reconcile.NotFound(emails, sess.Mappings),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.SelectedCampaign == nil {
		writeJSONError(w, "select a campaign first", http.StatusConflict)
		return
	}
	if len(sess.Mappings) == 0 {
		writeJSONError(w, "upload a CSV first", http.StatusConflict)
		return
	}

	existingAccounts, err := sess.Inventory.FetchCampaignEmailAccounts(r.Context(), sess.SelectedCampaign.ID)
	if err != nil {
		logger.Error("campaign accounts fetch failed", "campaign_id", sess.SelectedCampaign.ID, "error", err)
		writeJSONError(w, "fetching the campaign's accounts failed", remoteStatus(err))
		return
	}

	existing := reconcile.BuildLookup(existingAccounts)
	result := reconcile.Diff(existing, sess.Mappings)
	result.NotFound = reconcile.NotFound(sess.Emails, sess.Mappings)
	sess.Analysis = &result
	sess.RunID = ""

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysis":                 result,
		"duplicate_inventory_keys": reconcile.CountDuplicateEmails(existingAccounts),
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Analysis == nil || sess.SelectedCampaign == nil {
		writeJSONError(w, "generate a preview first", http.StatusConflict)
		return
	}

	var req struct {
		BatchSize int `json:"batch_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.Sync.BatchSize
	}

	applier := apply.NewApplier(sess.Client, s.runs)

	var run *apply.Run
	var err error
	if sess.RunID == "" {
		batches, berr := reconcile.MakeBatches(sess.Analysis.AccountIDsToAdd(), batchSize)
		if berr != nil {
			writeJSONError(w, berr.Error(), http.StatusBadRequest)
			return
		}
		run, err = applier.Start(r.Context(), sess.SelectedCampaign.ID, batches)
		if err == nil {
			sess.RunID = run.ID
		}
	} else {
		run, err = applier.Resume(r.Context(), sess.RunID)
	}
	if err != nil {
		logger.Error("apply run unavailable", "session_id", sess.ID, "error", err)
		writeJSONError(w, "the apply run could not be loaded", http.StatusInternalServerError)
		return
	}

	// One batch per call: the caller polls /apply to advance, which keeps
	// the run resumable across interruptions.
	done, err := applier.Advance(r.Context(), run)
	if err != nil {
		logger.Error("advance failed", "run_id", run.ID, "error", err)
		writeJSONError(w, "advancing the apply run failed", http.StatusInternalServerError)
		return
	}

	if done {
		s.finishRun(r, sess, run)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "done": done})
}

// finishRun records history and drops the stale membership cache once a
// run completes.
func (s *Server) finishRun(r *http.Request, sess *Session, run *apply.Run) {
	if inv, ok := sess.Inventory.(*cache.InventoryCache); ok {
		inv.InvalidateCampaignAccounts(r.Context(), run.CampaignID)
	}
	if s.history != nil {
		if err := s.history.Record(r.Context(), run); err != nil {
			logger.Error("recording run history failed", "run_id", run.ID, "error", err)
		}
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.RunID == "" {
		writeJSONError(w, "no apply run for this session", http.StatusNotFound)
		return
	}

	run, err := s.runs.Load(r.Context(), sess.RunID)
	if errors.Is(err, apply.ErrRunNotFound) {
		writeJSONError(w, "the apply run has expired", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "loading the apply run failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "done": run.Done()})
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, "run history is not enabled", http.StatusNotImplemented)
		return
	}

	runs, err := s.history.Recent(r.Context(), 20)
	if err != nil {
		logger.Error("run history query failed", "error", err)
		writeJSONError(w, "loading run history failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/dsvikstrand/bleu/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultListLimit = 50

// ownerFrom decodes the owner path params. chi leaves them percent-encoded
// when the request carries a RawPath, e.g. for a channel containing "/".
func ownerFrom(r *http.Request) (policy.OwnerKey, error) {
	channel, err := url.PathUnescape(chi.URLParam(r, "channel"))
	if err != nil {
		return policy.OwnerKey{}, fmt.Errorf("%w: channel: %v", policy.ErrInvalidArgument, err)
	}
	blueprint, err := url.PathUnescape(chi.URLParam(r, "blueprint"))
	if err != nil {
		return policy.OwnerKey{}, fmt.Errorf("%w: blueprint: %v", policy.ErrInvalidArgument, err)
	}
	return policy.OwnerKey{ChannelSlug: channel, BlueprintID: blueprint}, nil
}

func msToRFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// --- owners ---

func (s *Server) handleGetDefault(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	d, err := s.engine.DefaultFor(owner)
	if err != nil {
		writeErr(w, err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "no default assigned")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":            d.URL,
		"policy_version": d.PolicyVersion,
		"assigned_at":    msToRFC3339(d.AssignedAt),
	})
}

func (s *Server) handleAssignDefault(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	var req struct {
		Candidates []string `json:"candidates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := s.engine.AssignDefault(owner, req.Candidates)
	if err != nil {
		writeErr(w, err)
		return
	}

	status := http.StatusOK
	if res.Assigned {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"url":            res.URL,
		"policy_version": res.PolicyVersion,
		"assigned":       res.Assigned,
	})
}

func (s *Server) handleResetDefault(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.engine.ResetDefault(owner); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type assetView struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func toAssetView(a store.Asset) assetView {
	return assetView{ID: a.ID, URL: a.URL, Active: a.Active, CreatedAt: msToRFC3339(a.CreatedAt)}
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	var assets []store.Asset
	if r.URL.Query().Get("all") == "true" {
		assets, err = s.engine.DB.ListAssets(owner.ChannelSlug, owner.BlueprintID)
	} else {
		assets, err = s.engine.DB.ListActiveAssets(owner.ChannelSlug, owner.BlueprintID)
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, toAssetView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": views})
}

func (s *Server) handleIngestAsset(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	asset, res, err := s.engine.IngestAsset(owner, req.URL)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"asset":   toAssetView(*asset),
		"kept":    nonNil(res.Kept),
		"demoted": nonNil(res.Demoted),
	})
}

func (s *Server) handleRetain(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFrom(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	res, err := s.engine.Retain(owner)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kept":    nonNil(res.Kept),
		"demoted": nonNil(res.Demoted),
	})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// --- jobs ---

type jobView struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Payload     string  `json:"payload"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	MaxAttempts int     `json:"max_attempts"`
	AvailableAt *string `json:"available_at"`
	LastError   string  `json:"last_error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toJobView(j *store.Job) jobView {
	v := jobView{
		ID:          j.ID,
		Kind:        j.Kind,
		Payload:     j.Payload,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		CreatedAt:   msToRFC3339(j.CreatedAt),
		UpdatedAt:   msToRFC3339(j.UpdatedAt),
	}
	if j.AvailableAt != nil {
		at := msToRFC3339(*j.AvailableAt)
		v.AvailableAt = &at
	}
	return v
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string `json:"kind"`
		Payload     string `json:"payload"`
		MaxAttempts int    `json:"max_attempts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := s.engine.EnqueueJob(req.Kind, req.Payload, req.MaxAttempts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobView(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs, err := s.engine.DB.ListJobs(policy.Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, toJobView(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) handleClaimJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.ClaimJob()
	if err != nil {
		writeErr(w, err)
		return
	}
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.engine.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (s *Server) handleFailJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Error string `json:"error"`
	}
	// Body is optional.
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	job, tr, err := s.engine.FailJob(chi.URLParam(r, "jobID"), req.Error)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":        toJobView(job),
		"transition": tr,
	})
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CompleteJob(chi.URLParam(r, "jobID")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "succeeded"})
}

// --- stateless policy decisions ---

func (s *Server) handlePolicySelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Parts      []string `json:"parts"`
		Candidates []string `json:"candidates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	selected, err := policy.SelectDefaultParts(req.Parts, req.Candidates)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":            selected,
		"key":            policy.CompositeKey(req.Parts...),
		"policy_version": policy.HashPolicyVersion,
	})
}

func (s *Server) handlePolicyPartition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []policy.Record `json:"records"`
		Cap     int             `json:"cap"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	p, err := policy.PartitionByCap(req.Records, req.Cap)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePolicyTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attempts    int        `json:"attempts"`
		MaxAttempts int        `json:"max_attempts"`
		Now         *time.Time `json:"now"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	now := s.engine.Now()
	if req.Now != nil {
		now = *req.Now
	}

	tr, err := s.engine.Retry.FailureTransition(req.Attempts, req.MaxAttempts, now)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

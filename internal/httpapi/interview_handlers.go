package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rsahay/prescreen/internal/eventlog"
	"github.com/rsahay/prescreen/internal/store"
)

// handleCreateInterview places an outbound screening call to a candidate.
func (r *Router) handleCreateInterview(w http.ResponseWriter, req *http.Request) {
	var body struct {
		CandidateID string `json:"candidate_id"`
		JobID       string `json:"job_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if body.CandidateID == "" || body.JobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidate_id and job_id are required"})
		return
	}

	candidate, err := r.store.GetCandidate(req.Context(), body.CandidateID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "candidate not found"})
		return
	}
	if err != nil {
		captureError(req, err, "interviews: candidate lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	job, err := r.store.GetJob(req.Context(), body.JobID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if err != nil {
		captureError(req, err, "interviews: job lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	if candidate.Phone == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "candidate has no phone number"})
		return
	}

	op := getOperator(req.Context())

	callSid, err := r.placeCall(req.Context(), candidate.Phone, candidate.ID, job.ID)
	if err != nil {
		r.logger.Printf("interviews: failed to place call for candidate %s: %v", candidate.ID, err)
		captureError(req, err, "interviews: call placement failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to place call"})
		return
	}

	if err := r.store.UpsertCall(req.Context(), store.Call{
		ProviderCallID: callSid,
		CandidateID:    candidate.ID,
		JobID:          job.ID,
		Status:         "queued",
		StartedAt:      nowUTC(),
	}); err != nil {
		r.logger.Printf("interviews: failed to record call %s: %v", callSid, err)
	}
	if err := r.store.UpdateCandidateStatus(req.Context(), candidate.ID, "calling"); err != nil {
		r.logger.Printf("interviews: failed to update candidate %s status: %v", candidate.ID, err)
	}

	placedBy := "unknown"
	if op != nil {
		placedBy = op.Subject
	}
	r.logger.Printf("interviews: operator %s placed call %s (candidate=%s, job=%s)", placedBy, callSid, candidate.ID, job.ID)
	r.eventLog.LogAsync(callSid, eventlog.EventCallPlaced, map[string]any{
		"candidate_id": candidate.ID,
		"job_id":       job.ID,
		"operator":     placedBy,
	})

	writeJSON(w, http.StatusCreated, map[string]string{
		"call_sid":     callSid,
		"candidate_id": candidate.ID,
		"job_id":       job.ID,
	})
}

func (r *Router) handleListReports(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	candidateID := req.URL.Query().Get("candidate_id")

	reports, err := r.store.ListReports(req.Context(), candidateID, limit)
	if err != nil {
		captureError(req, err, "reports: list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reports"})
		return
	}
	if reports == nil {
		reports = []store.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (r *Router) handleCandidateReports(w http.ResponseWriter, req *http.Request) {
	candidateID := req.PathValue("candidateID")
	if candidateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing candidate id"})
		return
	}

	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	reports, err := r.store.ListReports(req.Context(), candidateID, limit)
	if err != nil {
		captureError(req, err, "reports: candidate list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list reports"})
		return
	}
	if reports == nil {
		reports = []store.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

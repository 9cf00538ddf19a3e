package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"narthex/internal/api"
	"narthex/internal/cards"
)

func (s *apiServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pending, err := s.daemon.PendingPreviousSession(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	settled, err := s.daemon.SessionSettled(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionStatus{
		SessionID:       s.daemon.SessionID(),
		PendingPrevious: api.FromQueueItems(pending),
		Settled:         settled,
	})
}

func (s *apiServer) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	adopted, err := s.daemon.ResumeSession(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AffectedResponse{Affected: adopted})
}

func (s *apiServer) handleSessionDiscard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	discarded, err := s.daemon.DiscardSession(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AffectedResponse{Affected: discarded})
}

func (s *apiServer) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	batches, err := s.daemon.Batches(r.Context(), r.URL.Query().Get("org_id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchListResponse{Batches: api.FromBatches(batches)})
}

func (s *apiServer) handleBatchCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	idStr, tail, _ := strings.Cut(rest, "/")
	if tail != "cards" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	batchID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	list, err := s.daemon.BatchCards(r.Context(), r.URL.Query().Get("org_id"), batchID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CardListResponse{Cards: api.FromCards(list)})
}

func (s *apiServer) handleCard(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	idStr, action, _ := strings.Cut(rest, "/")
	cardID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}
	orgID := r.URL.Query().Get("org_id")

	switch {
	case action == "review" && r.Method == http.MethodPost:
		if err := s.daemon.MarkCardReviewed(r.Context(), orgID, cardID); err != nil {
			if errors.Is(err, cards.ErrCardNotFound) {
				s.writeError(w, http.StatusNotFound, "card not found")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.AffectedResponse{Affected: 1})
	case action == "" && r.Method == http.MethodDelete:
		removed, err := s.daemon.DeleteCard(r.Context(), orgID, cardID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !removed {
			s.writeError(w, http.StatusNotFound, "card not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.AffectedResponse{Affected: 1})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleScanTokenCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		OrgID  string `json:"orgId"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.daemon.CreateScanToken(r.Context(), req.OrgID, req.UserID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromScanToken(token))
}

// handleScanUpload lets a phone enqueue a capture using a scan token as its
// only credential. The token scopes the capture to its organization.
func (s *apiServer) handleScanUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tokenValue := strings.TrimSpace(r.URL.Query().Get("token"))
	if tokenValue == "" {
		tokenValue = strings.TrimSpace(r.Header.Get("X-Scan-Token"))
	}
	if tokenValue == "" {
		s.writeError(w, http.StatusUnauthorized, "scan token required")
		return
	}
	token, err := s.daemon.RedeemScanToken(r.Context(), r.URL.Query().Get("org_id"), tokenValue)
	if err != nil {
		if errors.Is(err, cards.ErrTokenInvalid) {
			s.writeError(w, http.StatusUnauthorized, "invalid scan token")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.enqueueCapture(w, r, token.OrgID)
}

// handleScanTokenRedeem validates a token without enqueueing anything, so a
// phone client can confirm its hand-off link before the first capture.
func (s *apiServer) handleScanTokenRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		OrgID string `json:"orgId"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.daemon.RedeemScanToken(r.Context(), req.OrgID, req.Token)
	if err != nil {
		if errors.Is(err, cards.ErrTokenInvalid) {
			s.writeError(w, http.StatusUnauthorized, "invalid scan token")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromScanToken(token))
}

package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"elearning-partner-access/internal/domain"
	"elearning-partner-access/internal/domain/model"
	"elearning-partner-access/internal/infra/logging"
	redisinfra "elearning-partner-access/internal/infra/redis"
	"elearning-partner-access/internal/usecase"
)

// ---- response shapes ----

type codeResponse struct {
	ID                      string           `json:"id"`
	Code                    string           `json:"code"`
	PartnerID               string           `json:"partner_id"`
	ModuleID                *string          `json:"module_id,omitempty"`
	Name                    string           `json:"name"`
	Description             string           `json:"description,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	ExpiresAt               time.Time        `json:"expires_at"`
	ActivityDurationMinutes int              `json:"activity_duration_minutes"`
	MaxUses                 int              `json:"max_uses"`
	CurrentUses             int              `json:"current_uses"`
	IsActive                bool             `json:"is_active"`
	Status                  model.CodeStatus `json:"status"`
}

func toCodeResponse(c *model.AccessCode, status model.CodeStatus) codeResponse {
	return codeResponse{
		ID:                      c.ID,
		Code:                    c.Code,
		PartnerID:               c.PartnerID,
		ModuleID:                c.ModuleID,
		Name:                    c.Name,
		Description:             c.Description,
		CreatedAt:               c.CreatedAt,
		ExpiresAt:               c.ExpiresAt,
		ActivityDurationMinutes: c.ActivityDurationMinutes,
		MaxUses:                 c.MaxUses,
		CurrentUses:             c.CurrentUses,
		IsActive:                c.IsActive,
		Status:                  status,
	}
}

type usageRecordResponse struct {
	ID                     string     `json:"id"`
	AccessCodeID           string     `json:"access_code_id"`
	RedeemerIdentity       string     `json:"redeemer_identity"`
	UsedAt                 time.Time  `json:"used_at"`
	SessionStartedAt       time.Time  `json:"session_started_at"`
	SessionEndedAt         *time.Time `json:"session_ended_at,omitempty"`
	SessionDurationMinutes *int       `json:"session_duration_minutes,omitempty"`
}

func toUsageRecordResponse(u *model.UsageRecord) usageRecordResponse {
	return usageRecordResponse{
		ID:                     u.ID,
		AccessCodeID:           u.AccessCodeID,
		RedeemerIdentity:       u.RedeemerIdentity,
		UsedAt:                 u.UsedAt,
		SessionStartedAt:       u.SessionStartedAt,
		SessionEndedAt:         u.SessionEndedAt,
		SessionDurationMinutes: u.SessionDurationMinutes,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. The body always carries
// the specific error text so the UI can show it verbatim; eligibility
// failures in particular must stay distinguishable.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrCodeCollision):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrCodeInactive):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrCodeExpired):
		status, msg = http.StatusGone, err.Error()
	case errors.Is(err, domain.ErrCodeExhausted):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrSessionClosed):
		status, msg = http.StatusConflict, err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---- auth ----

type loginRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.Auth.AdminSecret)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

// ---- admin: codes ----

type codeCreateRequest struct {
	PartnerID               string    `json:"partner_id"`
	ModuleID                *string   `json:"module_id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description"`
	ExpiresAt               time.Time `json:"expires_at"`
	ActivityDurationMinutes int       `json:"activity_duration_minutes"`
	MaxUses                 int       `json:"max_uses"`
}

func (s *Server) codesCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		code, err := s.codeUC.Create(r.Context(), usecase.CreateCodeParams{
			PartnerID:               req.PartnerID,
			ModuleID:                req.ModuleID,
			Name:                    req.Name,
			Description:             req.Description,
			ExpiresAt:               req.ExpiresAt,
			ActivityDurationMinutes: req.ActivityDurationMinutes,
			MaxUses:                 req.MaxUses,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCodeResponse(code, code.Status(time.Now())))
	}
}

func (s *Server) codesGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.codeUC.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCodeResponse(res.Code, res.Status))
	}
}

type codeUpdateRequest struct {
	Name                    *string    `json:"name"`
	Description             *string    `json:"description"`
	ExpiresAt               *time.Time `json:"expires_at"`
	ActivityDurationMinutes *int       `json:"activity_duration_minutes"`
	MaxUses                 *int       `json:"max_uses"`
}

func (s *Server) codesUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		code, err := s.codeUC.Update(r.Context(), chi.URLParam(r, "id"), usecase.UpdateCodeParams{
			Name:                    req.Name,
			Description:             req.Description,
			ExpiresAt:               req.ExpiresAt,
			ActivityDurationMinutes: req.ActivityDurationMinutes,
			MaxUses:                 req.MaxUses,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCodeResponse(code, code.Status(time.Now())))
	}
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (s *Server) codesSetActiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		code, err := s.codeUC.SetActive(r.Context(), chi.URLParam(r, "id"), req.IsActive)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCodeResponse(code, code.Status(time.Now())))
	}
}

func (s *Server) codesDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.codeUC.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) codesListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 50 // Default page size
		}
		if offset < 0 {
			offset = 0
		}

		list, err := s.codeUC.List(r.Context(), usecase.CodeFilter{
			PartnerID: q.Get("partner_id"),
			Status:    model.CodeStatus(q.Get("status")),
			Search:    q.Get("search"),
			Offset:    offset,
			Limit:     limit,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]codeResponse, 0, len(list))
		for _, item := range list {
			out = append(out, toCodeResponse(item.Code, item.Status))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) usageHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := s.codeUC.UsageHistory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		records := make([]usageRecordResponse, 0, len(history.Records))
		for _, rec := range history.Records {
			records = append(records, toUsageRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, struct {
			Records []usageRecordResponse `json:"records"`
			Stats   *model.UsageStats     `json:"stats"`
		}{Records: records, Stats: history.Stats})
	}
}

func (s *Server) partnerUsageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.codeUC.PartnerUsage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// ---- public redemption gate ----

type redeemRequest struct {
	Code     string `json:"code"`
	Identity string `json:"identity"`
}

func (s *Server) redeemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req redeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Code == "" {
			http.Error(w, "code is required", http.StatusBadRequest)
			return
		}
		identity := req.Identity
		if identity == "" {
			identity = remoteIP(r)
		}

		if s.limiter != nil && s.cfg.Redeem.RateLimit > 0 {
			ok, err := s.limiter.Allow(ctx, redisinfra.RedeemAttemptKey(identity), s.cfg.Redeem.RateLimit, s.cfg.Redeem.RateWindow)
			if err != nil {
				// The limiter is protective, not authoritative; log and let
				// the store-level guard decide.
				logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter unavailable")
			} else if !ok {
				http.Error(w, "Too many attempts", http.StatusTooManyRequests)
				return
			}
		}

		rec, deadline, err := s.redeemUC.Redeem(ctx, req.Code, identity, time.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			Record   usageRecordResponse `json:"record"`
			Deadline time.Time           `json:"session_deadline"`
		}{Record: toUsageRecordResponse(rec), Deadline: deadline})
	}
}

type closeSessionRequest struct {
	EndedAt *time.Time `json:"ended_at"`
}

func (s *Server) closeSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req closeSessionRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
		}
		endedAt := time.Now()
		if req.EndedAt != nil {
			endedAt = *req.EndedAt
		}

		rec, err := s.redeemUC.CloseSession(r.Context(), chi.URLParam(r, "id"), endedAt)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toUsageRecordResponse(rec))
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

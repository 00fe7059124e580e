package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/admin"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/members"
	"serotonyl.ru/stream-rewards/internal/features/settings"
	"serotonyl.ru/stream-rewards/internal/httpapi/middleware"
)

// settingsView: настройки в том же виде, в каком их принимает PATCH.
type settingsView struct {
	Values map[string]string       `json:"values"`
	Parsed settings.RewardSettings `json:"parsed"`
}

type topUpRequest struct {
	Amount json.Number `json:"amount"`
}

type forceRequest struct {
	UserID    json.Number `json:"user_id"`
	Kind      string      `json:"reward_kind"`
	SessionID string      `json:"session_id"`
}

type memberRequest struct {
	UserID    json.Number `json:"user_id"`
	Username  string      `json:"username"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	JoinedAt  time.Time   `json:"joined_at"`
}

func actor(r *http.Request) string {
	return admin.Actor(middleware.AdminLoginFrom(r.Context()))
}

func newSettingsView(s settings.RewardSettings) settingsView {
	return settingsView{Values: s.Encode(), Parsed: s}
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.cfg.Admin.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(current))
}

// patchSettings принимает {"viewer_amount": 15, "fail_safe_mode": "disable"}.
// Значения приходят как строки, числа или bool; проверяются все сразу.
func (s *Server) patchSettings(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := decodeJSON(w, r, &raw); err != nil || len(raw) == 0 {
		writeMessage(w, http.StatusBadRequest, "ожидается непустой JSON-объект")
		return
	}

	changes := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			changes[key] = v
		case json.Number:
			changes[key] = v.String()
		case bool:
			changes[key] = strconv.FormatBool(v)
		default:
			writeMessage(w, http.StatusBadRequest, "некорректное значение "+key)
			return
		}
	}

	updated, err := s.cfg.Admin.UpdateSettings(r.Context(), changes, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettingsView(updated))
}

func (s *Server) poolStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.cfg.Admin.PoolStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) poolTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "некорректный JSON")
		return
	}
	amount, err := req.Amount.Int64()
	if err != nil {
		writeError(w, r, common.ErrInvalidAmount)
		return
	}

	balance, err := s.cfg.Admin.TopUp(r.Context(), amount, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (s *Server) poolLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cfg.Admin.Ledger(r.Context(), intQuery(r, "limit"), intQuery(r, "offset"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) poolVerify(w http.ResponseWriter, r *http.Request) {
	v, err := s.cfg.Admin.VerifyPool(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !v.Consistent {
		status = http.StatusConflict
	}
	writeJSON(w, status, v)
}

// listClaims: ?user_id=&reward_kind=&from=2026-01-01&to=2026-01-31&limit=&offset=
func (s *Server) listClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := claims.Filter{Limit: intQuery(r, "limit"), Offset: intQuery(r, "offset")}

	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "некорректный user_id")
			return
		}
		f.UserID = &id
	}
	if v := q.Get("reward_kind"); v != "" {
		kind, err := common.ParseRewardKind(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		f.Kind = kind
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(name); v != "" {
			day, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "дата в формате YYYY-MM-DD: "+name)
				return
			}
			*dst = &day
		}
	}

	list, err := s.cfg.Admin.Claims(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// claimSummary: ?date=YYYY-MM-DD, по умолчанию сегодня (UTC).
func (s *Server) claimSummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "дата в формате YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := s.cfg.Admin.DaySummary(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) resetClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "некорректный user_id")
		return
	}
	kind, err := common.ParseRewardKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	deleted, err := s.cfg.Admin.ResetClaim(r.Context(), userID, kind, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) forceIssue(w http.ResponseWriter, r *http.Request) {
	var req forceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "некорректный JSON")
		return
	}
	userID, err := req.UserID.Int64()
	if err != nil || userID <= 0 {
		writeMessage(w, http.StatusBadRequest, "нужен положительный user_id")
		return
	}
	kind, err := common.ParseRewardKind(req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = "manual"
	}

	res, err := s.cfg.Admin.ForceIssue(r.Context(), userID, kind, req.SessionID, actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) registerMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "некорректный JSON")
		return
	}
	userID, err := req.UserID.Int64()
	if err != nil || userID <= 0 {
		writeMessage(w, http.StatusBadRequest, "нужен положительный user_id")
		return
	}

	if req.JoinedAt.IsZero() {
		req.JoinedAt = time.Now()
	}
	m := members.Member{
		UserID:    userID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		JoinedAt:  req.JoinedAt.UTC(),
	}
	if err := s.cfg.Admin.RegisterMember(r.Context(), m, actor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

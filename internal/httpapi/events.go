package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
)

// participantRequest: тело событий эфира.
type participantRequest struct {
	UserID    json.Number `json:"user_id"`
	Username  string      `json:"username"`
	FirstName string      `json:"first_name"`
}

func (p participantRequest) userID() (int64, bool) {
	id, err := p.UserID.Int64()
	return id, err == nil && id > 0
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// readParticipant разбирает тело события и проверяет лимит запросов пользователя.
func (s *Server) readParticipant(w http.ResponseWriter, r *http.Request) (participantRequest, int64, bool) {
	var req participantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "некорректный JSON")
		return req, 0, false
	}
	userID, ok := req.userID()
	if !ok {
		writeMessage(w, http.StatusBadRequest, "нужен положительный user_id")
		return req, 0, false
	}
	if s.cfg.Limiter != nil && !s.cfg.Limiter.Allow(userID) {
		writeMessage(w, http.StatusTooManyRequests, "слишком много запросов")
		return req, 0, false
	}

	// Первое событие пользователя заводит его аккаунт (отсюда считается возраст)
	if err := s.cfg.Members.Touch(r.Context(), userID, req.Username, req.FirstName); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось зарегистрировать участника")
	}
	return req, userID, true
}

// startBroadcast: стример вышел в эфир.
func (s *Server) startBroadcast(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	_, userID, ok := s.readParticipant(w, r)
	if !ok {
		return
	}

	if err := s.cfg.Presence.StartBroadcast(r.Context(), sessionID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.cfg.Rewards.ArmBroadcasterReward(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// endBroadcast: эфир закончился, отложенная награда стримера отменяется.
// Завершить эфир может только тот, кто его начал.
func (s *Server) endBroadcast(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID, ok := userIDParam(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "некорректный user_id")
		return
	}

	if err := s.cfg.Presence.EndBroadcast(r.Context(), sessionID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: s.cfg.Rewards.CancelPending(sessionID, userID)})
}

// joinViewer: зритель вошёл в эфир.
func (s *Server) joinViewer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	_, userID, ok := s.readParticipant(w, r)
	if !ok {
		return
	}

	if err := s.cfg.Presence.Join(r.Context(), sessionID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.cfg.Rewards.ArmViewerReward(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// leaveViewer: зритель ушёл, его отложенная награда отменяется.
func (s *Server) leaveViewer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userID, ok := userIDParam(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "некорректный user_id")
		return
	}

	if err := s.cfg.Presence.Leave(r.Context(), sessionID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: s.cfg.Rewards.CancelPending(sessionID, userID)})
}

func (s *Server) rewardStatus(w http.ResponseWriter, r *http.Request) {
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

	st, err := s.cfg.Rewards.Status(r.Context(), userID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "некорректный user_id")
		return
	}
	b, err := s.cfg.Wallet.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "некорректный user_id")
		return
	}
	list, err := s.cfg.Wallet.GetTransactions(r.Context(), userID, intQuery(r, "limit"), intQuery(r, "offset"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Package httpapi: HTTP API движка наград: события эфира, статус наград
// для пользователей и админка под BasicAuth.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/admin"
	"serotonyl.ru/stream-rewards/internal/features/economy"
	"serotonyl.ru/stream-rewards/internal/features/members"
	"serotonyl.ru/stream-rewards/internal/features/presence"
	"serotonyl.ru/stream-rewards/internal/features/rewards"
	"serotonyl.ru/stream-rewards/internal/httpapi/middleware"
)

// Config: зависимости HTTP API.
type Config struct {
	Rewards  *rewards.Service
	Presence presence.Tracker
	Members  *members.Service
	Wallet   *economy.Service
	Admin    *admin.Service
	Auth     middleware.Verifier
	Limiter  *middleware.RateLimiter

	// AdminLimiter ограничивает запросы к /admin по адресу клиента (может быть nil)
	AdminLimiter *middleware.RateLimiter

	// Metrics отдаёт /metrics; Observer получает длительность запросов. Оба могут быть nil.
	Metrics  http.Handler
	Observer middleware.RequestObserver

	// Health проверяет зависимости для /healthz (обычно ping базы).
	Health func(ctx context.Context) error
}

// Server: HTTP API.
type Server struct {
	cfg    Config
	router http.Handler
}

// New собирает маршруты.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	s.router = s.buildRouter()
	return s
}

// Handler возвращает корневой обработчик.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.cfg.Observer))
	r.Use(middleware.Recover)

	r.Get("/healthz", s.health)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Route("/v1", func(api chi.Router) {
		api.Post("/sessions/{sessionID}/broadcaster", s.startBroadcast)
		api.Delete("/sessions/{sessionID}/broadcaster/{userID}", s.endBroadcast)
		api.Post("/sessions/{sessionID}/viewers", s.joinViewer)
		api.Delete("/sessions/{sessionID}/viewers/{userID}", s.leaveViewer)

		api.Get("/users/{userID}/rewards/{kind}", s.rewardStatus)
		api.Get("/users/{userID}/balance", s.balance)
		api.Get("/users/{userID}/transactions", s.transactions)
	})

	r.Route("/admin", func(adm chi.Router) {
		if s.cfg.AdminLimiter != nil {
			adm.Use(middleware.LimitByIP(s.cfg.AdminLimiter))
		}
		adm.Use(middleware.BasicAuth("stream-rewards admin", s.cfg.Auth))

		adm.Get("/settings", s.getSettings)
		adm.Patch("/settings", s.patchSettings)

		adm.Get("/pool", s.poolStatus)
		adm.Post("/pool/topup", s.poolTopUp)
		adm.Get("/pool/ledger", s.poolLedger)
		adm.Get("/pool/verify", s.poolVerify)

		adm.Get("/claims", s.listClaims)
		adm.Get("/claims/summary", s.claimSummary)
		adm.Delete("/claims/{userID}/{kind}", s.resetClaim)

		adm.Post("/rewards/force", s.forceIssue)
		adm.Post("/members", s.registerMember)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.Health(ctx); err != nil {
			log.WithError(err).Warn("Проверка здоровья не прошла")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Ответы ---

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Не удалось записать ответ")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError переводит ошибки движка в HTTP-статусы.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidSetting),
		errors.Is(err, common.ErrUnknownSetting),
		errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrUnknownRewardKind):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrBroadcastNotLive),
		errors.Is(err, common.ErrNotBroadcaster),
		errors.Is(err, common.ErrInsufficientFunds):
		status = http.StatusConflict
	case errors.Is(err, common.ErrSchedulerStopped):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": middleware.RequestIDFrom(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("Ошибка обработки запроса")
		writeMessage(w, status, "внутренняя ошибка")
		return
	}
	writeMessage(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	return dec.Decode(v)
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	return id, err == nil && id > 0
}

func intQuery(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

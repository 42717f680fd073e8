package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chilly266futon/orderComposer/internal/composer"
	"github.com/chilly266futon/orderComposer/internal/domain"
	"github.com/chilly266futon/orderComposer/internal/service"
)

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// RequestsPerSecond limits incoming requests; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

type Server struct {
	svc      *service.Service
	hub      *Hub
	upgrader *websocket.Upgrader
	router  *mux.Router
	server  *http.Server
	limiter *rate.Limiter
	cfg     ServerConfig
	logger  *zap.Logger
}

func NewServer(svc *service.Service, hub *Hub, cfg ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		svc:      svc,
		hub:      hub,
		upgrader: newUpgrader(cfg.AllowedOrigins),
		router:   mux.NewRouter(),
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.logRequests, s.rateLimit)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sessions", s.handleOpenSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/intents/{kind}", s.handleIntent).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/submit", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/balances/refresh", s.handleRefreshBalances).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/ws", s.handleWebSocket)
	api.HandleFunc("/users/{id}/sessions", s.handleUserSessions).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS for the mini-app origins.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server listening", zap.String("addr", l.Addr().String()))

	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	view, err := s.svc.OpenSession(r.Context(), req.UserID, req.Pair.toDomain())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, viewFromService(view))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.View(mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFromService(view))
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	views := s.svc.UserSessions(mux.Vars(r)["id"])

	sessions := make([]viewDTO, 0, len(views))
	for _, v := range views {
		sessions = append(sessions, viewFromService(v))
	}
	writeJSON(w, http.StatusOK, map[string][]viewDTO{"sessions": sessions})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.CloseSession(id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	intent, err := req.toIntent(service.IntentKind(vars["kind"]))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.svc.Apply(vars["id"], intent)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFromService(view))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	wait := r.URL.Query().Get("wait") == "true"

	view, outcome, err := s.svc.Submit(r.Context(), mux.Vars(r)["id"], wait)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome == composer.OutcomePending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, submitResponse{Outcome: outcome.String(), View: viewFromService(view)})
}

func (s *Server) handleRefreshBalances(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.RefreshBalances(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFromService(view))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, err := s.svc.View(id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	draft := draftFromSnapshot(view.Snapshot)
	s.hub.serve(s.upgrader, w, r, id, signal{Type: "draft", Draft: &draft})
}

func (req intentRequest) toIntent(kind service.IntentKind) (service.Intent, error) {
	in := service.Intent{Kind: kind}

	switch kind {
	case service.IntentSetSide:
		side, err := domain.ParseSide(req.Side)
		if err != nil {
			return in, err
		}
		in.Side = side
	case service.IntentSetOrderType:
		ot, err := domain.ParseOrderType(req.OrderType)
		if err != nil {
			return in, err
		}
		in.OrderType = ot
	case service.IntentSetAmount:
		in.Amount = req.Amount
		in.AmountText = req.Text
	case service.IntentSetPrice:
		in.Price = req.Price
	case service.IntentQuickPick:
		in.QuickPick = domain.QuickPick(req.Percent)
	case service.IntentSetPair:
		if req.Pair == nil {
			return in, errors.New("pair is required")
		}
		in.Pair = req.Pair.toDomain()
	}
	return in, nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnknownIntent),
		errors.Is(err, domain.ErrInvalidPercentage),
		errors.Is(err, domain.ErrInvalidAmountInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type ctxKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

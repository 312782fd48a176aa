package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-paid-access/internal/domain/ports/repository"
	"telegram-paid-access/internal/usecase"
)

// Server is the admin API: approval queue, decisions, plan and resource
// management, and a manual sweep trigger. Operators authenticate with the
// static API key (exchange it at /login for a short-lived session) or send the
// key directly on every call.
type Server struct {
	lifecycle *usecase.LifecycleUseCase
	expiry    *usecase.ExpiryUseCase
	planRepo  repository.PlanRepository
	resRepo   repository.ResourceRepository
	subRepo   repository.SubscriptionRepository
	auth      *AuthManager
	apiKey    string
	log       *zerolog.Logger

	httpServer *http.Server
}

func NewServer(
	lifecycle *usecase.LifecycleUseCase,
	expiry *usecase.ExpiryUseCase,
	planRepo repository.PlanRepository,
	resRepo repository.ResourceRepository,
	subRepo repository.SubscriptionRepository,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "AdminServer").Logger()
	return &Server{
		lifecycle: lifecycle,
		expiry:    expiry,
		planRepo:  planRepo,
		resRepo:   resRepo,
		subRepo:   subRepo,
		auth:      auth,
		apiKey:    apiKey,
		log:       &srvLog,
	}
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/v1/login", s.loginHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/bots/{botID}/pending", s.listPendingHandler)
		r.Post("/pending/{id}/approve", s.approveHandler)
		r.Post("/pending/{id}/reject", s.rejectHandler)

		r.Get("/subscriptions/{id}", s.getSubscriptionHandler)
		r.Get("/subscriptions/stats", s.subscriptionStatsHandler)
		r.Post("/sweep", s.sweepHandler)

		r.Get("/bots/{botID}/plans", s.listPlansHandler)
		r.Post("/bots/{botID}/plans", s.createPlanHandler)
		r.Delete("/plans/{id}", s.deletePlanHandler)

		r.Get("/bots/{botID}/resources", s.listResourcesHandler)
		r.Post("/bots/{botID}/resources", s.createResourceHandler)
		r.Delete("/resources/{id}", s.deleteResourceHandler)
	})
	return r
}

func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	s.log.Info().Int("port", port).Msg("admin server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// authMiddleware accepts either a valid session JWT or the raw API key as a
// bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}

		hdr := r.Header.Get("Authorization")
		parts := strings.Split(hdr, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == s.apiKey {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

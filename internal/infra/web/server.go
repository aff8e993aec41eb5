package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"elearning-partner-access/internal/config"
	redisinfra "elearning-partner-access/internal/infra/redis"
	"elearning-partner-access/internal/usecase"
)

type Server struct {
	cfg      *config.Config
	codeUC   usecase.CodeUseCase
	redeemUC usecase.RedemptionUseCase
	auth     *AuthManager
	limiter  *redisinfra.RateLimiter // nil disables redeem rate limiting
	log      *zerolog.Logger

	server *http.Server
}

func NewServer(
	cfg *config.Config,
	codeUC usecase.CodeUseCase,
	redeemUC usecase.RedemptionUseCase,
	auth *AuthManager,
	limiter *redisinfra.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		codeUC:   codeUC,
		redeemUC: redeemUC,
		auth:     auth,
		limiter:  limiter,
		log:      logger,
	}
}

// Router builds the full route tree. Split out from Start so tests can mount
// it on httptest servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log), TraceID(), RequestLog(s.log), Timeout(s.cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.loginHandler())

		// Public redemption gate
		r.Post("/redeem", s.redeemHandler())
		r.Post("/sessions/{id}/close", s.closeSessionHandler())

		// Admin console surface
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Route("/codes", func(r chi.Router) {
				r.Get("/", s.codesListHandler())
				r.Post("/", s.codesCreateHandler())
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.codesGetHandler())
					r.Put("/", s.codesUpdateHandler())
					r.Delete("/", s.codesDeleteHandler())
					r.Post("/active", s.codesSetActiveHandler())
					r.Get("/usage", s.usageHistoryHandler())
				})
			})
			r.Get("/partners/{id}/usage", s.partnerUsageHandler())
		})
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Router(),
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireAdmin guards the admin console surface with the JWT session.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package server wires the feature handlers into one HTTP router.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/settleup/docs"
	"github.com/fkhayef/settleup/internal/auth"
	"github.com/fkhayef/settleup/internal/balance"
	"github.com/fkhayef/settleup/internal/config"
	"github.com/fkhayef/settleup/internal/expense"
	"github.com/fkhayef/settleup/internal/expense/split"
	"github.com/fkhayef/settleup/internal/group"
	"github.com/fkhayef/settleup/internal/metrics"
	"github.com/fkhayef/settleup/internal/notification"
	"github.com/fkhayef/settleup/internal/settlement"
	"github.com/fkhayef/settleup/internal/user"
	"github.com/fkhayef/settleup/pkg/idempotency"
	"github.com/fkhayef/settleup/pkg/lock"
	mw "github.com/fkhayef/settleup/pkg/middleware"
	"github.com/fkhayef/settleup/pkg/response"
)

const shutdownTimeout = 10 * time.Second

// Server owns the router and the HTTP listener.
type Server struct {
	cfg    *config.Config
	db     *sql.DB
	router chi.Router
}

// New builds the router. With a nil rdb, idempotency keys are ignored and
// settle actions are serialised within this process only.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *Server {
	s := &Server{cfg: cfg, db: db}

	var (
		idem   idempotency.Store
		locker lock.Locker
	)
	if rdb != nil {
		idem = idempotency.NewRedisStore(rdb)
		locker = lock.NewRedis(rdb, lock.DefaultOptions())
	}

	var (
		jwtManager *auth.JWTManager
		tokens     user.TokenIssuer
	)
	if cfg.AuthMode == config.AuthModeJWT {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
		tokens = jwtManager
	}
	authenticator := mw.NewAuthenticator(jwtManager)

	// Split Strategy Factory (Factory Pattern)
	splitFactory := split.NewSplitStrategyFactory()

	// User feature
	userService := user.NewService(user.NewRepository(db))
	userHandler := user.NewHandler(userService, tokens)

	// Group feature
	groupService := group.NewService(group.NewRepository(db), userService)
	groupHandler := group.NewHandler(groupService)

	// Notification feature
	notificationService := notification.NewService(notification.NewRepository(db))
	notificationHandler := notification.NewHandler(notificationService)

	// Expense feature
	expenseService := expense.NewService(expense.NewRepository(db), splitFactory, groupService, notificationService)
	expenseHandler := expense.NewHandler(expenseService)

	// Settlement feature
	settlementService := settlement.NewService(settlement.NewRepository(db), groupService, notificationService)
	settlementHandler := settlement.NewHandler(settlementService)

	// Balances
	balanceService := balance.NewService(groupService, expenseService, settlementService, locker)
	balanceHandler := balance.NewHandler(balanceService)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", userHandler.Routes(authenticator.Middleware))

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)
			r.Use(mw.Idempotency(idem, cfg.IdempotencyTTL))

			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/expenses", expenseHandler.Routes())
			r.Mount("/balances", balanceHandler.Routes())
			r.Mount("/settlements", settlementHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		response.ServiceUnavailable(w, "database unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Run serves on cfg.Port until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", s.cfg.Port, "auth_mode", s.cfg.AuthMode, "driver", s.cfg.DatabaseDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/ngoconnect/apiserver/config"
	"github.com/ngoconnect/apiserver/internal/apierrors"
	"github.com/ngoconnect/apiserver/internal/auth"
	"github.com/ngoconnect/apiserver/internal/db"
	"github.com/ngoconnect/apiserver/internal/handlers"
	"github.com/ngoconnect/apiserver/internal/jobs"
	"github.com/ngoconnect/apiserver/internal/mailer"
	appmw "github.com/ngoconnect/apiserver/internal/middleware"
	"github.com/ngoconnect/apiserver/internal/mq"
	"github.com/ngoconnect/apiserver/internal/seed"
	"github.com/ngoconnect/apiserver/internal/services"
	"github.com/ngoconnect/apiserver/internal/storage"
	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/ngoconnect/apiserver/internal/validation"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second

	// ResetSweepJob is the scheduler name of the expired reset code sweep.
	ResetSweepJob = "reset-sweep"
)

// secondaryClientOrigin is the alternate dev server port allowed by CORS.
const secondaryClientOrigin = "http://localhost:5174"

// Server wraps the HTTP server, its router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	queue      *mq.MQ
	scheduler  *jobs.Scheduler
	worker     *mailer.Worker
	logger     *slog.Logger
}

// New wires every dependency named by cfg and builds the router. Resources
// opened here are released by Shutdown.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger, scheduler: jobs.NewScheduler(logger)}

	repo, err := s.openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Mail.Transport == "queue" {
		s.queue, err = mq.Open(ctx, cfg.MQ)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("open message queue: %w", err)
		}
		// Nothing outside this process can drain an in-memory queue.
		if cfg.MQ.Backend == "" || cfg.MQ.Backend == "memory" {
			if s.worker, err = inProcessWorker(cfg, s.queue, logger); err != nil {
				s.close()
				return nil, err
			}
		}
	}

	mail, err := mailer.NewFromConfig(&cfg, s.queue, logger)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("build mailer: %w", err)
	}

	var avatars *storage.Storage
	if cfg.Storage.Enabled() {
		avatars, err = storage.Open(ctx, cfg.Storage)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("open object storage: %w", err)
		}
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	if err != nil {
		s.close()
		return nil, err
	}

	hasher := auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	userService := services.NewUserService(repo, hasher, mail, logger)
	resetService := services.NewResetService(userService, repo, mail, cfg.Reset.CodeTTL, cfg.Reset.SweepGrace, logger)

	// The in-memory store starts empty on every boot and the seed command
	// cannot reach it, so the samples are loaded here.
	if cfg.Database.Driver == "memory" {
		if _, err := seed.Run(ctx, repo, userService, logger); err != nil {
			s.close()
			return nil, err
		}
	}

	if cfg.Reset.SweepSchedule != "" {
		err := s.scheduler.Register(ResetSweepJob, cfg.Reset.SweepSchedule, func(ctx context.Context) error {
			_, err := resetService.SweepExpired(ctx)
			return err
		})
		if err != nil {
			s.close()
			return nil, err
		}
	}

	validate := validation.New()
	authHandler := handlers.NewAuthHandler(userService, resetService, tokens, validate, logger)
	userHandler := handlers.NewUserHandler(userService, avatars, validate, logger)
	healthHandler := handlers.NewHealthHandler(userService, logger)
	limiter := appmw.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window)
	authHandler.LimitByEmail(appmw.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.Window))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		appmw.RequestLogging(logger),
		middleware.Timeout(requestTimeout),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL, secondaryClientOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.NewNotFoundError("Route not found").Write(w, r)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.NewMethodNotAllowedError().Write(w, r)
	})

	handlers.HealthRouter(router, healthHandler)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, limiter.Middleware(logger))
	})
	router.Route("/api/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, authHandler.RequireAuth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3001
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openRepository(ctx context.Context, cfg config.Config) (services.UserRepository, error) {
	if cfg.Database.Driver == "memory" {
		s.logger.WarnContext(ctx, "using in-memory user store; data is lost on restart")
		return store.NewMemoryUserRepository(), nil
	}
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s.db = conn
	return store.NewUserRepository(conn), nil
}

// inProcessWorker delivers queued mail through Resend when a key is set and
// through the log otherwise.
func inProcessWorker(cfg config.Config, queue *mq.MQ, logger *slog.Logger) (*mailer.Worker, error) {
	var sender mailer.Sender = mailer.NewLogSender(logger)
	if cfg.Mail.ResendAPIKey != "" {
		rs, err := mailer.NewResendSenderFromConfig(cfg.Mail, logger)
		if err != nil {
			return nil, fmt.Errorf("build mail worker: %w", err)
		}
		sender = rs
	}
	return mailer.NewWorker(queue, cfg.MQ.MailChannel, sender, logger), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Scheduler exposes the background job scheduler.
func (s *Server) Scheduler() *jobs.Scheduler {
	return s.scheduler
}

// Start runs the HTTP server and the background jobs. It blocks until the
// listener stops.
func (s *Server) Start() error {
	s.scheduler.Start()
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if s.worker != nil {
		go func() {
			if err := s.worker.Run(workerCtx); err != nil {
				s.logger.Error("mail worker stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.scheduler.Stop(stopCtx)
		s.close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the database, queue and scheduler.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.scheduler.Stop(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close message queue", "error", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

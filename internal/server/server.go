package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/esurat/apiserver/config"
	"github.com/esurat/apiserver/internal/cache"
	"github.com/esurat/apiserver/internal/db"
	"github.com/esurat/apiserver/internal/handlers"
	"github.com/esurat/apiserver/internal/logger"
	"github.com/esurat/apiserver/internal/metrics"
	"github.com/esurat/apiserver/internal/mq"
	"github.com/esurat/apiserver/internal/ratelimit"
	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/internal/storage"
	"github.com/esurat/apiserver/internal/store"
)

const cachePrefix = "esurat:"

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	logger     *zap.Logger
}

// New connects every backing service and builds the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Server{db: dbConn, logger: log}
	fail := func(err error) (*Server, error) {
		_ = s.Shutdown(context.Background())
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, caching and rate limiting disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = client.Close()
		} else {
			s.redis = client
		}
	}

	st, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("init storage: %w", err))
	}
	if err := st.EnsureBucket(ctx); err != nil {
		return fail(fmt.Errorf("ensure bucket: %w", err))
	}
	if err := st.ApplyRetention(ctx); err != nil {
		log.Warn("temp upload retention not applied", zap.String("bucket", st.Bucket()), zap.Error(err))
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fail(fmt.Errorf("init mq: %w", err))
	}
	s.mq = bus

	m := metrics.New(cfg.Metrics)

	userRepo := store.NewUserRepository(dbConn)
	tokenRepo := store.NewTokenRepository(dbConn)
	documentRepo := store.NewDocumentRepository(dbConn)
	activityRepo := store.NewActivityRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)
	lookupRepo := store.NewLookupRepository(dbConn)

	activityService := services.NewActivityService(activityRepo, log)
	if bus != nil {
		activityService.WithPublisher(bus, cfg.MQ.ActivityChannel)
	}
	authService := services.NewAuthService(userRepo, tokenRepo, activityService, cfg.JWT.Secret, cfg.JWT.TTL, log).WithMetrics(m)
	documentService := services.NewDocumentService(documentRepo, activityService, log).WithMetrics(m)
	meetingService := services.NewMeetingService(documentRepo, activityService, log).WithMetrics(m)
	attachmentService := services.NewAttachmentService(attachmentRepo, documentRepo, st, activityService, log).
		WithMetrics(m).
		WithLimits(cfg.Upload.MaxBytes, cfg.Upload.ReencodeImages)
	lookupService := services.NewLookupService(lookupRepo, userRepo, activityService, log).WithMetrics(m)
	if s.redis != nil {
		lookupService.WithCache(cache.New(s.redis, cachePrefix))
	}

	errs := handlers.Errors{Logger: log, Production: cfg.IsProduction()}
	requireAuth := handlers.RequireAuth(authService, errs)

	var loginLimit, dropdownLimit func(http.Handler) http.Handler
	if s.redis != nil {
		onError := func(err error) {
			log.Warn("rate limiter unavailable", zap.Error(err))
		}
		login := ratelimit.NewLimiter(s.redis, cachePrefix+"ratelimit:login:", cfg.RateLimit.LoginPerMinute, time.Minute)
		loginLimit = ratelimit.Middleware(login, ratelimit.ByIP, func(w http.ResponseWriter, r *http.Request) {
			m.RateLimited("login")
			handlers.TooManyRequests(w, r)
		}, onError)
		dropdown := ratelimit.NewLimiter(s.redis, cachePrefix+"ratelimit:dropdown:", cfg.RateLimit.DropdownPerMinute, time.Minute)
		dropdownLimit = ratelimit.Middleware(dropdown, handlers.UserOrIP, func(w http.ResponseWriter, r *http.Request) {
			m.RateLimited("general_dropdown")
			handlers.DropdownTooManyRequests(w, r)
		}, onError)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logger.Middleware(log),
		m.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Handle("/metrics", m.Handler())
	if disk, ok := st.Backend().(*storage.DiskStorage); ok && strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		prefix := cfg.Storage.PublicBaseURL + "/"
		router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(disk.Root()))))
	}

	handlers.AuthRouter(router, handlers.NewAuthHandler(authService, errs), requireAuth, loginLimit)
	handlers.LookupRouter(router, handlers.NewLookupHandler(lookupService, errs), requireAuth, dropdownLimit)
	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		handlers.DocumentRouter(r, handlers.NewDocumentHandler(documentService, attachmentService, errs))
		handlers.MeetingRouter(r, handlers.NewMeetingHandler(meetingService, errs))
		handlers.HistoryRouter(r, handlers.NewHistoryHandler(activityService, errs))
		handlers.AttachmentRouter(r, handlers.NewAttachmentHandler(attachmentService, cfg.Upload.MaxBytes, errs))
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.logger.Sync()
	return err
}

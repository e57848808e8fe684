package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alcorzop/portal-gateway/internal/admin"
	"github.com/alcorzop/portal-gateway/internal/adminpath"
	"github.com/alcorzop/portal-gateway/internal/auth"
	"github.com/alcorzop/portal-gateway/internal/config"
	"github.com/alcorzop/portal-gateway/internal/content"
	"github.com/alcorzop/portal-gateway/internal/db"
	"github.com/alcorzop/portal-gateway/internal/middleware"
	"github.com/alcorzop/portal-gateway/internal/ratelimit"
	"github.com/alcorzop/portal-gateway/internal/telemetry/metrics"
	"github.com/alcorzop/portal-gateway/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

const sessionSweepInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config    *config.Config
	adminPath string
	dbPool    *pgxpool.Pool

	redisClient  *redis.Client
	sessions     *auth.Service
	principals   auth.PrincipalRepo
	loginLimiter *ratelimit.Limiter
	gateway      *middleware.Gateway
	contentRepo  content.Repo

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

type NewServerParams struct {
	Config      *config.Config
	VersionInfo string

	// admin principal bootstrap; when both are set no admin_user table
	// lookup ever happens
	AdminEmail        string
	AdminPasswordHash string

	AdminPathSeed string
	RedisPassword string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		TracingEnabled: cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("gateway", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	var rdb *redis.Client
	if cfg.RedisEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	sessions := auth.NewService(auth.ServiceParams{
		Repo: auth.NewPsqlSessionRepo(dbPool),
		TTL:  time.Duration(cfg.SessionTTLHours) * time.Hour,
	})
	go func() {
		for range time.Tick(sessionSweepInterval) {
			sessions.SweepExpired(ctx)
		}
	}()

	var principals auth.PrincipalRepo
	if params.AdminEmail != "" && params.AdminPasswordHash != "" {
		log.Debug("admin principal bootstrapped from environment")
		principals = auth.NewStaticPrincipals(params.AdminEmail, params.AdminPasswordHash)
	} else {
		principals = auth.NewPsqlPrincipalRepo(dbPool)
	}

	// the login throttle shares windows across instances when redis is on
	var limiterStore ratelimit.Store
	if rdb != nil {
		limiterStore = ratelimit.NewRedisStore(rdb)
	} else {
		limiterStore = ratelimit.NewMemoryStore()
	}
	loginLimiter := ratelimit.New(limiterStore)

	adminPath := adminpath.Resolve(
		cfg.AdminPath,
		adminpath.Seed(params.AdminPathSeed, params.AdminEmail, params.AdminPasswordHash),
	)
	if adminPath != adminpath.DefaultPath {
		log.Infof("admin path resolved to: %s", adminPath)
	}

	return &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		adminPath:    adminPath,
		dbPool:       dbPool,
		redisClient:  rdb,
		sessions:     sessions,
		principals:   principals,
		loginLimiter: loginLimiter,
		gateway:      middleware.NewGateway(adminPath, sessions, metricsManager),
		contentRepo:  content.NewPsqlRepo(dbPool),

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("portal-gateway"))

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	var coarseLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		coarseLimiter = redis_rate.NewLimiter(s.redisClient)
	}

	adminHandler := admin.NewHandler(admin.NewHandlerParams{
		Sessions:     s.sessions,
		Principals:   s.principals,
		LoginLimiter: s.loginLimiter,
		LoginWindow:  time.Duration(s.config.LoginWindowMinutes) * time.Minute,
		LoginMax:     s.config.LoginMaxAttempts,
		AdminPath:    s.adminPath,
		Metrics:      s.metricsManager,
	})
	adminHandler.SetupRoutes(r, coarseLimiter, s.metricsManager)

	contentHandler := content.NewHandler(s.contentRepo)
	contentHandler.SetupRoutes(r)

	// the admin SPA; requests reach it under the canonical prefix, the
	// gateway already swapped out the obfuscated one
	if s.config.AdminStaticFilesPath != "" {
		if exists, err := pkg.PathExists(s.config.AdminStaticFilesPath, true); err != nil || !exists {
			log.Errorf("admin static files path [%s] not usable: exists=%t, err=%v",
				s.config.AdminStaticFilesPath, exists, err)
		}
		fileServer := http.FileServer(http.Dir(s.config.AdminStaticFilesPath))
		r.PathPrefix(adminpath.DefaultPath).Handler(
			http.StripPrefix(adminpath.DefaultPath, fileServer),
		).Name("admin-ui")
	}

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// Handler is the complete request pipeline: the auth gateway wraps the
// router, so path rewrites happen before any route matching.
func (s *Server) Handler() http.Handler {
	return s.gateway.Handle()(s.routerSetup())
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(host, strconv.Itoa(s.config.PrometheusMetricsPort))
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

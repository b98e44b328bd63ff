package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"navconsole/internal/authz"
	"navconsole/internal/config"
	"navconsole/internal/database"
	"navconsole/internal/handler"
	"navconsole/internal/metrics"
	"navconsole/internal/middleware"
	"navconsole/internal/repository"
	"navconsole/internal/service"
	"navconsole/internal/session"
	"navconsole/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Server wires repositories, services and handlers into one gin engine.
type Server struct {
	Router   *gin.Engine
	Hub      *websocket.Hub
	Catalog  *authz.Catalog
	Sessions *session.Authenticator
	Seeder   service.SeedService

	cfg *config.Config
	log *logrus.Logger
}

// LoadCatalog returns the catalog from CATALOG_FILE, or the built-in rules.
func LoadCatalog(cfg *config.Config) (*authz.Catalog, error) {
	if cfg.CatalogFile != "" {
		return authz.LoadCatalog(cfg.CatalogFile)
	}
	return authz.NewCatalog(authz.DefaultRules())
}

// NewDenyList connects to redis when REDIS_ADDR is set and falls back to an
// in-process list otherwise. The returned close func is never nil.
func NewDenyList(ctx context.Context, cfg *config.Config, log *logrus.Logger) (session.DenyList, func() error, error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, revocations are kept in memory and not shared between replicas")
		return session.NewMemoryDenyList(cfg.SessionTTL), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping %s: %w", cfg.RedisAddr, err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("connected to redis")
	return session.NewRedisDenyList(client, "", cfg.SessionTTL), client.Close, nil
}

// New builds the router. db must already be migrated.
func New(cfg *config.Config, log *logrus.Logger, db *gorm.DB, deny session.DenyList, m *metrics.Metrics) (*Server, error) {
	catalog, err := LoadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	issuer, err := session.NewIssuer(session.Options{
		Secret:        []byte(cfg.JWTSecret),
		Issuer:        cfg.SessionIssuer,
		TTL:           cfg.SessionTTL,
		RefreshWindow: cfg.SessionRefreshWindow,
	})
	if err != nil {
		return nil, err
	}
	sessions := session.NewAuthenticator(issuer, deny)
	gate := authz.NewGate(catalog, cfg.AuthzDefaultDeny)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userService := service.NewUserService(userRepo, roleRepo, auditRepo, txManager, sessions, wsHub)
	roleService := service.NewRoleService(roleRepo, permRepo, userRepo, auditRepo, txManager, sessions, wsHub)
	permissionService := service.NewPermissionService(permRepo, auditRepo, txManager, wsHub)
	authService := service.NewAuthService(userRepo, roleRepo, auditRepo, sessions)
	auditService := service.NewAuditService(auditRepo, userRepo)
	seedService := service.NewSeedService(userRepo, roleRepo, permRepo, txManager)

	cookie := middleware.CookieConfig{
		Name:   cfg.SessionCookie,
		MaxAge: cfg.SessionTTL,
		Secure: cfg.IsRelease(),
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(m.Middleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{middleware.RefreshedTokenHeader, middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	// The gate runs for every route, including unmatched ones.
	router.Use(middleware.NewAuthorizer(sessions, gate, cookie, m, log).Enforce())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, sessions, cookie.Name)
	})

	root := router.Group("")
	handler.NewHealthHandler(sqlDB).RegisterRoutes(root)
	handler.NewAuthHandler(authService, cookie, m).RegisterRoutes(root)
	handler.NewUserHandler(userService).RegisterRoutes(root)
	handler.NewRoleHandler(roleService).RegisterRoutes(root)
	handler.NewPermissionHandler(permissionService).RegisterRoutes(root)
	handler.NewAuditHandler(auditService).RegisterRoutes(root)

	return &Server{
		Router:   router,
		Hub:      wsHub,
		Catalog:  catalog,
		Sessions: sessions,
		Seeder:   seedService,
		cfg:      cfg,
		log:      log,
	}, nil
}

// Seed creates the catalog permissions, the admin role and, when ADMIN_PASSWORD is
// set, the admin user.
func (s *Server) Seed(ctx context.Context) error {
	admin := service.SeedAdmin{
		Account:  s.cfg.AdminAccount,
		Password: s.cfg.AdminPassword,
		Email:    s.cfg.AdminEmail,
	}
	if admin.Password == "" {
		s.log.Warn("ADMIN_PASSWORD not set, skipping admin user")
		admin.Account = ""
	}
	if err := s.Seeder.Seed(ctx, s.Catalog.Codes(), admin); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	s.log.WithField("permissions", len(s.Catalog.Codes())).Info("seed complete")
	return nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Ping is used by the CLI before serving.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return database.Ping(ctx, sqlDB)
}

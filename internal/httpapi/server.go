package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/metrics"
	"PhoneVerse/internal/ports"
	"PhoneVerse/internal/usecase"
)

// Deps wires the use cases the handlers compose.
type Deps struct {
	Server     config.ServerConfig
	TokenTTL   time.Duration
	Articles   ports.ArticleRepository
	Publisher  *usecase.Publisher
	Automation *usecase.AutomationController
	Auth       *usecase.AuthService
	Uploads    ports.ImageStore
	// UploadDir is served under UploadPath when uploads are stored locally.
	UploadDir  string
	UploadPath string
	Images     ports.ImageResolver
	Ping       func(context.Context) error
	Logger     *zap.Logger
}

type handlers struct {
	Deps
	logger *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{Deps: deps, logger: deps.Logger.With(zap.String("component", "http"))}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog(), metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(deps.Server.AllowedOrigins)))

	r.GET("/health", h.health)
	r.GET("/ping", h.ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.UploadDir != "" && deps.UploadPath != "" {
		r.Static(deps.UploadPath, deps.UploadDir)
	}

	api := r.Group("/api")
	api.GET("/articles", h.listArticles)
	api.GET("/articles/:slug", h.getArticle)
	api.GET("/category/:category", h.listCategory)
	api.GET("/search", h.search)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/logout", h.authRequired(), h.logout)
	authGroup.GET("/me", h.authRequired(), h.me)
	authGroup.PUT("/profile", h.authRequired(), h.updateProfile)

	user := api.Group("/user", h.authRequired())
	user.POST("/submit-article", h.submitArticle)
	user.GET("/articles", h.myArticles)

	admin := api.Group("/admin", h.authRequired(), h.adminRequired())
	admin.GET("/users", h.listUsers)
	admin.GET("/users/:id", h.getUser)
	admin.PUT("/users/:id/status", h.setUserStatus)
	admin.PUT("/users/:id/role", h.setUserRole)
	admin.DELETE("/users/:id", h.deleteUser)

	admin.GET("/stats", h.stats)
	admin.GET("/pending-review", h.pendingArticles)
	admin.GET("/all", h.allArticles)
	admin.POST("/approve/:id", h.approve)
	admin.POST("/reject/:id", h.reject)
	admin.POST("/delete/:id", h.deleteArticle)
	admin.DELETE("/articles/:id", h.deleteArticle)

	admin.GET("/automation/status", h.automationStatus)
	admin.POST("/automation/start", h.automationStart)
	admin.POST("/automation/stop", h.automationStop)
	admin.POST("/automation/trigger", h.automationTrigger)
	admin.POST("/trigger-automation", h.automationTrigger)
	admin.POST("/clear-sources", h.clearSources)

	r.NoRoute(h.fallback)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentials cannot be combined with a literal "*", so echo the origin.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer wraps handler in an http.Server bound to addr.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

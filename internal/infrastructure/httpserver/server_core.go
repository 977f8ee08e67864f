package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/frcrag/frcrag/internal/core/ports"
	customMiddleware "github.com/frcrag/frcrag/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	TrustProxy     bool
	APIKeySecret   string
	AdminToken     string
	AdminTokenHash string
}

type ServerDeps struct {
	QueryService   ports.QueryService
	RateLimiter    ports.RateLimiter
	AnswerCache    ports.AnswerCache
	TunnelManager  ports.TunnelManager
	ImageFetcher   ports.ImageFetcher
	HealthCheckers []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	queryService   ports.QueryService
	rateLimiter    ports.RateLimiter
	answerCache    ports.AnswerCache
	tunnelManager  ports.TunnelManager
	imageFetcher   ports.ImageFetcher
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
	startedAt      time.Time
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		queryService:   deps.QueryService,
		rateLimiter:    deps.RateLimiter,
		answerCache:    deps.AnswerCache,
		tunnelManager:  deps.TunnelManager,
		imageFetcher:   deps.ImageFetcher,
		healthCheckers: deps.HealthCheckers,
		startedAt:      time.Now().UTC(),
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.RateLimiter,
			customMiddleware.IdentityConfig{
				APIKeySecret: serverConfig.APIKeySecret,
				TrustProxy:   serverConfig.TrustProxy,
			},
			customMiddleware.AdminConfig{
				Token:     serverConfig.AdminToken,
				TokenHash: serverConfig.AdminTokenHash,
			},
			logger,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

package http

import (
	"context"
	"embed"
	"net/http"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/broadcast"
	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/http/middleware"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed static
var static embed.FS

// GatewayHealth reports whether SMSC calls are currently allowed through.
type GatewayHealth interface {
	Ready() bool
}

// Deps are the collaborators behind the HTTP surface. Gateway, Redis and Archive are optional.
type Deps struct {
	Dispatcher Dispatcher
	Gateway    GatewayHealth
	Hub        *broadcast.Hub
	Redis      redis.UniversalClient
	Archive    repository.MailingArchive
	Log        *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	lg := deps.Log
	if lg == nil {
		lg = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", healthHandler(deps.Gateway))

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          deps.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:send:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	e.GET("/", indexHandler())
	e.POST("/send/", sendMailingHandler(deps.Dispatcher, lg), rlMW)
	e.GET("/ws", wsHandler(deps.Hub, cfg.Broadcast.WriteTimeout, lg))
	if deps.Archive != nil {
		e.GET("/reports/mailings", listMailingsHandler(deps.Archive))
	}

	return &Server{e: e, log: lg}
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// healthHandler answers 503 while the SMSC circuit breaker rejects calls.
func healthHandler(gw GatewayHealth) echo.HandlerFunc {
	return func(c echo.Context) error {
		if gw != nil && !gw.Ready() {
			return c.String(http.StatusServiceUnavailable, "smsc circuit open")
		}
		return c.String(http.StatusOK, "ok")
	}
}

func indexHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		page, err := static.ReadFile("static/index.html")
		if err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, page)
	}
}

func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

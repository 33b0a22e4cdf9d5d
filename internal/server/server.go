package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/liftbuddy/config"
	"github.com/mohammad-safakhou/liftbuddy/internal/runtime"
)

const (
	APIName    = "Lifting Buddy API"
	APIVersion = "1.0.1"
)

// Handlers groups everything New mounts.
type Handlers struct {
	Auth     *AuthHandler
	Workouts *WorkoutsHandler
	Chat     *ChatHandler
	Secret   []byte
	// Ping backs /healthz when set.
	Ping func(ctx context.Context) error
}

// New builds the echo instance with middleware and routes.
func New(cfg *config.Config, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler(log.New(log.Writer(), "[HTTP] ", log.LstdFlags))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error {
		if h.Ping != nil {
			if err := h.Ping(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
			}
		}
		return c.String(http.StatusOK, "ok")
	})
	registerDocs(e)
	if cfg.Telemetry.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Lifting Buddy API is running!")
	})

	authMW := runtime.EchoAuthMiddleware(h.Secret)
	api := e.Group("/api/v1")
	h.Auth.Register(api.Group("/auth"))
	api.GET("/info", func(c echo.Context) error {
		return c.JSON(http.StatusOK, InfoResponse{Name: APIName, Version: APIVersion})
	}, authMW)
	h.Workouts.Register(api.Group("/workouts", useEnvelope, authMW), api.Group("/search", useEnvelope, authMW))
	h.Chat.Register(api.Group("/chat", authMW))
	return e
}

// Run wires dependencies, starts the backfill job and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}
	deps, err := NewDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	if cfg.Backfill.Enabled {
		bf, err := deps.Backfill(cfg.Backfill)
		if err != nil {
			return err
		}
		bf.Start(ctx)
	}

	e := New(cfg, Handlers{
		Auth: &AuthHandler{Store: deps.Store, Secret: secret, TokenTTL: cfg.Server.TokenTTL, SecureCookie: cfg.Server.SecureCookies},
		Workouts: &WorkoutsHandler{
			Store:    deps.Store,
			Embedder: deps.Embedder,
			Location: cfg.General.Location(),
		},
		Chat:   &ChatHandler{Pipeline: deps.Pipeline},
		Secret: secret,
		Ping:   deps.Store.Ping,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", cfg.Server.Address)
	if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	mwecho "github.com/labstack/echo/v4/middleware"
	mwsvc "winsbygroup.com/keyverify/internal/middleware"

	"winsbygroup.com/keyverify/internal/config"

	apihttp "winsbygroup.com/keyverify/internal/http/api"
)

type Server struct {
	Echo     *echo.Echo
	HTTP     *http.Server
	Services *Services
}

// Build wires the local verification API on top of NewServices.
func Build(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	svcs, err := NewServices(cfg, log)
	if err != nil {
		return nil, err
	}

	e, err := NewEcho(svcs, cfg.APIKey, log)
	if err != nil {
		svcs.Close()
		return nil, err
	}

	//
	// HTTP server
	//
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		Echo:     e,
		HTTP:     srv,
		Services: svcs,
	}, nil
}

// NewEcho registers every route. apiKey guards the API and the status page
// when set; health and metrics endpoints stay open.
func NewEcho(svcs *Services, apiKey string, log *zap.Logger) (*echo.Echo, error) {
	handler, err := apihttp.NewHandler(svcs.Store, log.Named("api"), svcs.Checkers...)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Health endpoints
	e.GET("/livez", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/readyz", func(c echo.Context) error {
		if err := svcs.DB.PingContext(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "DB not ready")
		}
		return c.String(http.StatusOK, "Ready")
	})

	e.GET("/metrics", echo.WrapHandler(svcs.Metrics.Handler()))

	// Middleware
	e.Use(mwsvc.RequestLogger(log.Named("http")))
	e.Use(mwecho.Recover())

	auth := mwsvc.APIKeyAuth(apiKey)

	// Verification API
	apiGroup := e.Group("/api/v1")
	apihttp.RegisterRoutes(apiGroup, handler, auth)

	// Status page
	apihttp.RegisterStatus(e, handler, auth)

	return e, nil
}

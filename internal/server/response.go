package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

const envelopeKey = "envelope"

// useEnvelope marks a route group whose errors are rendered as Envelope bodies.
func useEnvelope(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(envelopeKey, true)
		return next(c)
	}
}

func success(c echo.Context, code int, data any) error {
	return c.JSON(code, Envelope{Success: true, Data: data})
}

// errorHandler logs every failed request and renders it as JSON.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if c.Response().Committed {
			return
		}
		if wrapped, _ := c.Get(envelopeKey).(bool); wrapped {
			_ = c.JSON(code, Envelope{Success: false, Error: &msg})
			return
		}
		_ = c.JSON(code, HTTPError{Error: msg})
	}
}

func badRequest(format string, args ...any) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, "Validation error: "+fmt.Sprintf(format, args...))
}

// storeError maps store sentinels to HTTP statuses and hides everything else.
func storeError(err error, notFound string) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound).SetInternal(err)
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "conflict").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

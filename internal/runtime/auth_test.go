package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/liftbuddy/config"
)

func runMiddleware(t *testing.T, secret []byte, prepare func(*http.Request)) (string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	prepare(req)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var subject string
	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		if v, ok := c.Get("user_id").(string); ok {
			subject = v
		}
		if sub, ok := SubjectFromContext(c.Request().Context()); !ok || sub != subject {
			t.Fatalf("subject missing from request context")
		}
		return nil
	})
	return subject, handler(c)
}

func TestEchoAuthMiddlewareBearer(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := SignJWT("user-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	sub, err := runMiddleware(t, secret, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) })
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected user-1, got %q", sub)
	}
}

func TestEchoAuthMiddlewareCookie(t *testing.T) {
	secret := []byte("s3cret")
	tok, _ := SignJWT("user-2", secret, time.Hour)
	sub, err := runMiddleware(t, secret, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookie, Value: tok}) })
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if sub != "user-2" {
		t.Fatalf("expected user-2, got %q", sub)
	}
}

func TestEchoAuthMiddlewareRejects(t *testing.T) {
	secret := []byte("s3cret")
	expired, _ := SignJWT("user-1", secret, -time.Minute)
	foreign, _ := SignJWT("user-1", []byte("other"), time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString(secret)

	for name, header := range map[string]string{
		"missing":       "",
		"garbage":       "Bearer not-a-token",
		"expired":       "Bearer " + expired,
		"wrong secret":  "Bearer " + foreign,
		"no expiration": "Bearer " + noExp,
	} {
		_, err := runMiddleware(t, secret, func(r *http.Request) {
			if header != "" {
				r.Header.Set("Authorization", header)
			}
		})
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %v", name, err)
		}
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Postgres: config.PostgresConfig{
		Host: "db", User: "lift", Password: "p@ss", DBName: "liftbuddy",
	}}}
	dsn, err := BuildPostgresDSN(cfg)
	if err != nil {
		t.Fatalf("BuildPostgresDSN: %v", err)
	}
	if dsn != "postgres://lift:p%40ss@db:5432/liftbuddy?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", dsn)
	}

	cfg.Storage.Postgres.URL = "postgres://explicit"
	if dsn, _ := BuildPostgresDSN(cfg); dsn != "postgres://explicit" {
		t.Fatalf("expected explicit url, got %q", dsn)
	}

	if _, err := BuildPostgresDSN(&config.Config{}); err == nil {
		t.Fatalf("expected error for incomplete config")
	}
}

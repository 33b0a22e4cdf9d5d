package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammad-safakhou/liftbuddy/internal/runtime"
	"github.com/mohammad-safakhou/liftbuddy/internal/store"
)

func newAuthContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSignupCreatesUser(t *testing.T) {
	st := &userStoreStub{}
	h := &AuthHandler{Store: st, Secret: testSecret}
	c, rec := newAuthContext(`{"email":" Lifter@Example.com ","password":"correct horse"}`)
	if err := h.signup(c); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if st.createdEmail != "lifter@example.com" {
		t.Fatalf("email not normalised: %q", st.createdEmail)
	}
	if bcrypt.CompareHashAndPassword([]byte(st.createdHash), []byte("correct horse")) != nil {
		t.Fatalf("stored hash does not match password")
	}
	var resp IDResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.ID != "user-1" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestSignupRejects(t *testing.T) {
	for name, tc := range map[string]struct {
		body string
		err  error
		code int
	}{
		"short password": {body: `{"email":"a@b.c","password":"short"}`, code: http.StatusBadRequest},
		"bad email":      {body: `{"email":"nope","password":"long enough"}`, code: http.StatusBadRequest},
		"duplicate":      {body: `{"email":"a@b.c","password":"long enough"}`, err: fmt.Errorf("insert: %w", store.ErrConflict), code: http.StatusConflict},
	} {
		h := &AuthHandler{Store: &userStoreStub{createErr: tc.err}, Secret: testSecret}
		c, _ := newAuthContext(tc.body)
		err := h.signup(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != tc.code {
			t.Fatalf("%s: expected %d, got %v", name, tc.code, err)
		}
	}
}

func TestLoginIssuesToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := &AuthHandler{Store: &userStoreStub{id: "user-42", hash: string(hash)}, Secret: testSecret, TokenTTL: time.Hour}
	c, rec := newAuthContext(`{"email":"a@b.c","password":"correct horse"}`)
	if err := h.login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	sub, err := runtime.ParseJWT(resp.Token, testSecret)
	if err != nil || sub != "user-42" {
		t.Fatalf("token subject %q err %v", sub, err)
	}
	cookie := rec.Result().Cookies()
	if len(cookie) != 1 || cookie[0].Name != runtime.AuthCookie || cookie[0].Value != resp.Token || !cookie[0].HttpOnly {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	h := &AuthHandler{Store: &userStoreStub{id: "user-42", hash: string(hash)}, Secret: testSecret}
	c, _ := newAuthContext(`{"email":"a@b.c","password":"battery staple"}`)
	he, ok := h.login(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", he)
	}

	h.Store = &userStoreStub{getErr: store.ErrNotFound}
	c, _ = newAuthContext(`{"email":"x@b.c","password":"correct horse"}`)
	if he, ok := h.login(c).(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %v", he)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	h := &AuthHandler{}
	c, rec := newAuthContext("")
	if err := h.logout(c); err != nil {
		t.Fatalf("logout: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Fatalf("expected expired cookie, got %+v", cookies)
	}
}

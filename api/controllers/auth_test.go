package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pyshop/pyshop-backend/api/middleware"
	"github.com/pyshop/pyshop-backend/internal/auth"
	"github.com/pyshop/pyshop-backend/internal/users"
	pkgerrors "github.com/pyshop/pyshop-backend/pkg/errors"
)

type stubAuthService struct {
	login   *auth.LoginResponse
	refresh *auth.RefreshResponse
	user    *users.UserDTO
	err     error

	loggedOutAccessID string
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.login, s.err
}

func (s *stubAuthService) Refresh(_ context.Context, _ auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return s.refresh, s.err
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	s.loggedOutAccessID = accessID
	return s.err
}

func (s *stubAuthService) Me(_ context.Context, _ uuid.UUID) (*users.UserDTO, error) {
	return s.user, s.err
}

type stubRegisterService struct {
	user *users.UserDTO
	err  error
}

func (s *stubRegisterService) Register(_ context.Context, _ auth.RegisterRequest) (*users.UserDTO, error) {
	return s.user, s.err
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthRegisterCreated(t *testing.T) {
	svc := &stubRegisterService{user: &users.UserDTO{ID: uuid.New(), Email: "shopper@example.com"}}
	handler := AuthRegister(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"email":"shopper@example.com","password":"hunter2hunter2","first_name":"Sam","last_name":"Shopper"}`))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data users.UserDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Email != "shopper@example.com" {
		t.Fatalf("unexpected user: %+v", envelope.Data)
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	handler := AuthRegister(&stubRegisterService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"email":"not-an-email","password":"short"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthLogin(t *testing.T) {
	svc := &stubAuthService{login: &auth.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}}
	handler := AuthLogin(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, jsonRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"shopper@example.com","password":"hunter2hunter2"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AccessToken != "access" || envelope.Data.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens: %+v", envelope.Data)
	}
}

func TestAuthLoginBadCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")}
	handler := AuthLogin(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, jsonRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"shopper@example.com","password":"wrong-password"}`))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefresh(t *testing.T) {
	svc := &stubAuthService{refresh: &auth.RefreshResponse{AccessToken: "access2", RefreshToken: "refresh2"}}
	handler := AuthRefresh(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, jsonRequest(http.MethodPost, "/api/v1/auth/refresh",
		`{"access_token":"access","refresh_token":"refresh"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAuthLogout(t *testing.T) {
	svc := &stubAuthService{}
	handler := AuthLogout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "jti-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.loggedOutAccessID != "jti-1" {
		t.Fatalf("expected jti to reach the service, got %q", svc.loggedOutAccessID)
	}
}

func TestAuthMe(t *testing.T) {
	userID := uuid.New()
	svc := &stubAuthService{user: &users.UserDTO{ID: userID, Email: "shopper@example.com"}}
	handler := AuthMe(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAuthMeRequiresIdentity(t *testing.T) {
	handler := AuthMe(&stubAuthService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

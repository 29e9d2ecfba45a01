package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auth-service/internal/repository"
	"auth-service/internal/service"
)

type mockEmailSender struct {
	lastTo       string
	lastUsername string
	lastToken    string
	verifyErr    error
	welcomeErr   error
}

func (m *mockEmailSender) SendVerification(_ context.Context, toEmail, username, token string) error {
	m.lastTo = toEmail
	m.lastUsername = username
	m.lastToken = token
	return m.verifyErr
}

func (m *mockEmailSender) SendWelcome(_ context.Context, toEmail, username string) error {
	m.lastTo = toEmail
	m.lastUsername = username
	return m.welcomeErr
}

func setupRouter(sender *mockEmailSender) (*gin.Engine, *service.UserService) {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryUserRepository()
	hasher := service.NewPasswordHasher(bcrypt.MinCost)
	tokens := service.NewTokenService("test-secret")
	svc := service.NewUserService(zap.NewNop(), repo, hasher, tokens, sender, 30*time.Minute)
	h := NewUserHandler(zap.NewNop(), svc)
	return NewRouter(zap.NewNop(), h, svc), svc
}

func performRequest(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, r http.Handler, email, username, password string) {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 on register, got %d", rec.Code)
	}
}

func TestUserHandlerRegister_Success(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodPost, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"username": "alice",
		"password": "pw",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if sender.lastTo != "user@example.com" || sender.lastToken == "" {
		t.Fatalf("expected verification email to be sent")
	}

	var resp struct {
		UserID               string `json:"user_id"`
		Username             string `json:"username"`
		VerificationRequired bool   `json:"verification_required"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UserID == "" || resp.Username != "alice" || !resp.VerificationRequired {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestUserHandlerRegister_Conflict(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	registerUser(t, r, "user@example.com", "alice", "pw")

	rec := performRequest(r, http.MethodPost, "/auth/register", map[string]string{
		"email":    "user@example.com",
		"username": "bob",
		"password": "pw2",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestUserHandlerRegister_InvalidRequest(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodPost, "/auth/register", map[string]string{
		"email": "not-an-email",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestUserHandlerVerifyEmail(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	registerUser(t, r, "user@example.com", "alice", "pw")

	rec := performRequest(r, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": "wrong-token",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for wrong token, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": sender.lastToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	// El token ya fue consumido.
	rec = performRequest(r, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": sender.lastToken,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 on reuse, got %d", rec.Code)
	}
}

func TestUserHandlerLogin_Unverified(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	registerUser(t, r, "user@example.com", "alice", "pw")

	rec := performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "pw",
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestUserHandlerLogin_Success(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	registerUser(t, r, "user@example.com", "alice", "pw")
	rec := performRequest(r, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": sender.lastToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on verify, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "pw",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected login response: %s", rec.Body.String())
	}

	rec = performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestUserHandlerLogin_UnknownUser(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"username": "nobody",
		"password": "pw",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestUserHandlerResendVerification(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodPost, "/auth/resend-verification", map[string]string{
		"email": "missing@example.com",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	registerUser(t, r, "user@example.com", "alice", "pw")
	firstToken := sender.lastToken

	rec = performRequest(r, http.MethodPost, "/auth/resend-verification", map[string]string{
		"email": "user@example.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if sender.lastToken == firstToken {
		t.Fatalf("expected a fresh verification token")
	}

	rec = performRequest(r, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": sender.lastToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on verify, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodPost, "/auth/resend-verification", map[string]string{
		"email": "user@example.com",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for already verified, got %d", rec.Code)
	}
}

func TestUserHandlerResendVerification_EmailFailure(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	registerUser(t, r, "user@example.com", "alice", "pw")
	sender.verifyErr = errors.New("smtp down")

	rec := performRequest(r, http.MethodPost, "/auth/resend-verification", map[string]string{
		"email": "user@example.com",
	}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestUserHandlerMe(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	registerUser(t, r, "user@example.com", "alice", "pw")
	rec := performRequest(r, http.MethodPost, "/auth/verify-email", map[string]string{
		"token": sender.lastToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on verify, got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "pw",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 on login, got %d", rec.Code)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	rec = performRequest(r, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + login.AccessToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if resp.User.Username != "alice" || resp.User.Email != "user@example.com" {
		t.Fatalf("unexpected me response: %s", rec.Body.String())
	}
}

func TestUserHandlerMe_MissingToken(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodGet, "/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestUserHandlerMe_InvalidToken(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer garbage",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestUserHandlerMe_UserGone(t *testing.T) {
	sender := &mockEmailSender{}
	r, svc := setupRouter(sender)

	token, err := service.NewTokenService("test-secret").Issue("ghost", 10*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.CurrentUser(context.Background(), token); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	rec := performRequest(r, http.MethodGet, "/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestUserHandlerLogout(t *testing.T) {
	sender := &mockEmailSender{}
	r, _ := setupRouter(sender)

	rec := performRequest(r, http.MethodPost, "/auth/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

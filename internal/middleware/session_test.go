package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/springboard/internal/authz"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockStateLoader struct {
	currentFn func(ctx context.Context, sessionID, userID string) (*session.State, error)
}

func (m *mockStateLoader) Current(ctx context.Context, sessionID, userID string) (*session.State, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, sessionID, userID)
	}
	return &session.State{SessionID: sessionID, UserID: userID, Status: authz.StatusAuthorized}, nil
}

var _ StateLoader = (*session.Manager)(nil)

func validSessionRepo(userID string) *mockSessionRepository {
	return &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{
					ID:        "valid-session-id",
					UserID:    userID,
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}
}

// serveWithCookie はセッションCookie付きでリクエストを処理する。cookieが空の場合はCookieを付けない。
func serveWithCookie(h http.Handler, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: cookie})
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- NewSessionMiddleware のテスト ---

func TestSessionMiddleware_ValidSession_InjectsUserIDAndState(t *testing.T) {
	mw := NewSessionMiddleware(validSessionRepo("user-123"), &mockStateLoader{})

	var capturedUserID string
	var capturedState *session.State
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		capturedState, _ = StateFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := serveWithCookie(handler, "valid-session-id")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if capturedState == nil || capturedState.SessionID != "valid-session-id" {
		t.Errorf("state = %+v, want session valid-session-id", capturedState)
	}
}

func TestSessionMiddleware_NoSession_PassesThroughWithoutUser(t *testing.T) {
	tests := []struct {
		name   string
		repo   *mockSessionRepository
		cookie string
	}{
		{"Cookieなし", &mockSessionRepository{}, ""},
		{"期限切れセッション", &mockSessionRepository{}, "expired-session"},
		{"リポジトリエラー", &mockSessionRepository{
			findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, context.DeadlineExceeded
			},
		}, "some-session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mw := NewSessionMiddleware(tt.repo, &mockStateLoader{})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if _, err := UserIDFromContext(r.Context()); err == nil {
					t.Error("user ID should not be in context")
				}
				if _, ok := StateFromContext(r.Context()); ok {
					t.Error("state should not be in context")
				}
			}))

			serveWithCookie(handler, tt.cookie)

			if !called {
				t.Error("handler should be called")
			}
		})
	}
}

func TestSessionMiddleware_StateLoadError_InjectsUserIDOnly(t *testing.T) {
	loader := &mockStateLoader{
		currentFn: func(ctx context.Context, sessionID, userID string) (*session.State, error) {
			return nil, errors.New("store down")
		},
	}
	mw := NewSessionMiddleware(validSessionRepo("user-1"), loader)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UserIDFromContext(r.Context()); err != nil {
			t.Error("user ID should be in context")
		}
		if _, ok := StateFromContext(r.Context()); ok {
			t.Error("state should not be in context")
		}
	}))

	serveWithCookie(handler, "valid-session-id")
}

// --- RequireAPIAuth のテスト ---

func TestRequireAPIAuth(t *testing.T) {
	tests := []struct {
		name       string
		state      *session.State
		wantStatus int
		wantCode   string
	}{
		{
			name:       "利用権限あり",
			state:      &session.State{UserID: "u1", Status: authz.StatusAuthorized},
			wantStatus: http.StatusOK,
		},
		{
			name:       "利用権限なし",
			state:      &session.State{UserID: "u1", Status: authz.StatusUnauthorized},
			wantStatus: http.StatusForbidden,
			wantCode:   model.ErrCodeNotAuthorized,
		},
		{
			name:       "権限確認の失敗",
			state:      &session.State{UserID: "u1", Status: authz.StatusUnauthorized, AuthError: model.NewAuthorizationFailedError()},
			wantStatus: http.StatusForbidden,
			wantCode:   model.ErrCodeAuthorizationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAPIAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/calendar", nil)
			req = req.WithContext(ContextWithState(req.Context(), tt.state))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestRequireAPIAuth_NoUser_Returns401(t *testing.T) {
	handler := RequireAPIAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireAPIAuth_UserWithoutState_Returns403(t *testing.T) {
	handler := RequireAPIAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/calendar", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// --- RequirePageAuth のテスト ---

func TestRequirePageAuth_RedirectsToLogin(t *testing.T) {
	states := []*session.State{
		nil,
		{UserID: "u1", Status: authz.StatusUnauthorized},
		{UserID: "u1", Status: authz.StatusUnknown},
	}

	for _, st := range states {
		handler := RequirePageAuth("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if st != nil {
			req = req.WithContext(ContextWithState(req.Context(), st))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
		}
		if loc := w.Header().Get("Location"); loc != "/login" {
			t.Errorf("Location = %q, want %q", loc, "/login")
		}
	}
}

func TestRequirePageAuth_AuthorizedPassesThrough(t *testing.T) {
	called := false
	handler := RequirePageAuth("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithState(req.Context(), &session.State{UserID: "u1", Status: authz.StatusAuthorized}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("handler should be called")
	}
}

// --- コンテキストヘルパーのテスト ---

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	ctx := context.Background()
	_, err := UserIDFromContext(ctx)
	if err == nil {
		t.Error("expected error for missing user ID in context")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), userIDContextKey, "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
}

func TestContextWithState_SetsUserID(t *testing.T) {
	ctx := ContextWithState(context.Background(), &session.State{UserID: "user-789"})
	userID, err := UserIDFromContext(ctx)
	if err != nil || userID != "user-789" {
		t.Errorf("UserIDFromContext() = %q, %v", userID, err)
	}
}

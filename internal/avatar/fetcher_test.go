package avatar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockSSRFGuard はテスト用のSSRFValidator。ループバックへの接続を許可する。
type mockSSRFGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newImageServer(t *testing.T, contentType string, status int, body []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFetcher_Fetch_Success(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	ts := newImageServer(t, "image/png; charset=binary", http.StatusOK, png)

	data, mime, err := NewFetcher(&mockSSRFGuard{}, nil).Fetch(context.Background(), ts.URL+"/photo.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(data) != string(png) || mime != "image/png" {
		t.Errorf("Fetch = %q, %q", data, mime)
	}
}

func TestFetcher_Fetch_NotAnImage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        []byte
	}{
		{"HTML", "text/html", http.StatusOK, []byte("<html>")},
		{"SVG", "image/svg+xml", http.StatusOK, []byte("<svg/>")},
		{"404", "image/png", http.StatusNotFound, nil},
		{"サイズ超過", "image/jpeg", http.StatusOK, []byte(strings.Repeat("a", maxAvatarSize+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newImageServer(t, tt.contentType, tt.status, tt.body)
			data, mime, err := NewFetcher(&mockSSRFGuard{}, nil).Fetch(context.Background(), ts.URL)
			if err != nil || data != nil || mime != "" {
				t.Errorf("Fetch = %d bytes, %q, %v; want nil data", len(data), mime, err)
			}
		})
	}
}

func TestFetcher_Fetch_SSRFBlocked(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	guard := &mockSSRFGuard{validateFn: func(string) error { return errors.New("blocked") }}
	data, _, err := NewFetcher(guard, nil).Fetch(context.Background(), ts.URL)
	if err != nil || data != nil {
		t.Errorf("Fetch = %v, %v", data, err)
	}
	if called {
		t.Error("blocked URL should not be requested")
	}
}

func TestFetcher_Fetch_NetworkError(t *testing.T) {
	_, _, err := NewFetcher(&mockSSRFGuard{}, nil).Fetch(context.Background(), "http://127.0.0.1:1/photo.png")
	if err == nil {
		t.Error("expected error for unreachable host")
	}
}

func TestFetcher_Fetch_EmptyURL(t *testing.T) {
	data, _, err := NewFetcher(nil, nil).Fetch(context.Background(), "")
	if data != nil || err != nil {
		t.Errorf("Fetch(\"\") = %v, %v", data, err)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	secured := SecurityHeaders(handler)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	secured.ServeHTTP(w, req)

	tests := []struct {
		header   string
		expected string
		contains bool
	}{
		{"X-Frame-Options", "DENY", false},
		{"X-Content-Type-Options", "nosniff", false},
		{"Referrer-Policy", "no-referrer", false},
		{"Content-Security-Policy", "default-src 'none'", true},
		{"Content-Security-Policy", "frame-ancestors 'none'", true},
		{"Permissions-Policy", "camera=()", true},
	}

	for _, tc := range tests {
		got := w.Header().Get(tc.header)
		if tc.contains {
			if !strings.Contains(got, tc.expected) {
				t.Errorf("Expected %s header to contain '%s', got '%s'", tc.header, tc.expected, got)
			}
		} else if got != tc.expected {
			t.Errorf("Expected %s header to be '%s', got '%s'", tc.header, tc.expected, got)
		}
	}
}

func TestSecurityHeaders_PassesThrough(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("Hello"))
	})

	secured := SecurityHeaders(handler)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	secured.ServeHTTP(w, req)

	if !called {
		t.Error("Expected handler to be called")
	}
	if w.Body.String() != "Hello" {
		t.Errorf("Expected body 'Hello', got '%s'", w.Body.String())
	}
}

func TestNoStore(t *testing.T) {
	handler := NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/me", nil))

	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got '%s'", got)
	}
}

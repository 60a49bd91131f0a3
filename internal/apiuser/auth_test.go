package apiuser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sapliy/baas-integration/pkg/observability"
)

type mockDirectory struct {
	users map[string]*User
}

func (m *mockDirectory) GetByKeyPrefix(_ context.Context, prefix string) (*User, error) {
	return m.users[prefix], nil
}

func TestGenerateKeyShape(t *testing.T) {
	user, key, err := GenerateKey("billing-backoffice")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !strings.HasPrefix(key, user.KeyPrefix+"_") {
		t.Errorf("key %q does not start with prefix %q", key, user.KeyPrefix)
	}
	if parts := strings.Split(key, "_"); len(parts) != 3 {
		t.Errorf("key %q should have three segments", key)
	}
	if user.KeyHash == key || user.KeyHash == "" {
		t.Error("key hash must be a hash, not empty or the plaintext")
	}
}

func TestMiddleware(t *testing.T) {
	user, key, err := GenerateKey("ops")
	if err != nil {
		t.Fatal(err)
	}
	user.Enabled = true
	directory := &mockDirectory{users: map[string]*User{user.KeyPrefix: user}}

	var authenticated *User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(directory, observability.NewLogger("apiuser-test"))(next)

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"valid key", key, http.StatusOK},
		{"missing key", "", http.StatusUnauthorized},
		{"malformed key", "not-a-key", http.StatusUnauthorized},
		{"unknown prefix", "bk_00000000_00000000000000000000000000000000", http.StatusUnauthorized},
		{"wrong secret", user.KeyPrefix + "_00000000000000000000000000000000", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			authenticated = nil
			req := httptest.NewRequest(http.MethodGet, "/account/123", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantCode == http.StatusOK && (authenticated == nil || authenticated.Name != "ops") {
				t.Errorf("authenticated user = %+v, want ops", authenticated)
			}
			if tc.wantCode != http.StatusOK && authenticated != nil {
				t.Error("handler ran despite rejected key")
			}
		})
	}
}

func TestMiddlewareDisabledUser(t *testing.T) {
	user, key, err := GenerateKey("ops")
	if err != nil {
		t.Fatal(err)
	}
	user.Enabled = false
	directory := &mockDirectory{users: map[string]*User{user.KeyPrefix: user}}

	handler := Middleware(directory, observability.NewLogger("apiuser-test"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler ran for a disabled user")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", key)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

package apiuser

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sapliy/baas-integration/pkg/jsonutil"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Keys look like bk_<8 hex id>_<32 hex secret>. The bk_<id> prefix is the
// database lookup key; the full key is verified against a bcrypt hash.
const keyPrefix = "bk"

type contextKey struct{}

// FromContext returns the authenticated user set by Middleware, or nil.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}

// Directory looks up credentials for authentication.
type Directory interface {
	GetByKeyPrefix(ctx context.Context, prefix string) (*User, error)
}

// GenerateKey mints a fresh API key and its stored form. The plaintext key
// is returned once and never persisted.
func GenerateKey(name string) (*User, string, error) {
	idBytes := make([]byte, 4)
	secretBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, "", err
	}
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", err
	}

	prefix := fmt.Sprintf("%s_%s", keyPrefix, hex.EncodeToString(idBytes))
	key := fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(secretBytes))

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	return &User{Name: name, KeyPrefix: prefix, KeyHash: string(hash)}, key, nil
}

// Middleware authenticates requests by the X-API-Key header and stores the
// user on the request context.
func Middleware(directory Directory, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			user, err := authenticate(r.Context(), directory, key)
			if err != nil {
				logger.WithContext(r.Context()).Warn("rejected api request", "error", err.Error())
				jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
		})
	}
}

func authenticate(ctx context.Context, directory Directory, key string) (*User, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 || parts[0] != keyPrefix {
		return nil, fmt.Errorf("malformed api key")
	}

	user, err := directory.GetByKeyPrefix(ctx, parts[0]+"_"+parts[1])
	if err != nil {
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}
	if user == nil || !user.Enabled {
		return nil, fmt.Errorf("unknown or disabled api key")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.KeyHash), []byte(key)) != nil {
		return nil, fmt.Errorf("api key mismatch")
	}
	return user, nil
}

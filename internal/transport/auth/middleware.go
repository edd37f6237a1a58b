package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

type TokenRepo interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error)
}

// SanctumMiddleware accepts a bearer token, or a token query parameter for
// links opened directly in a browser, and stores the owning operator id in
// the request context.
func SanctumMiddleware(tokenRepo TokenRepo, logger *logrus.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var pat *repository.PersonalAccessToken
			if plain := bearerToken(r); plain != "" {
				p, err := tokenRepo.FindTokenByPlainToken(r.Context(), plain)
				if err == nil {
					pat = p
				} else {
					logger.WithError(err).WithField("source", "header").Debug("[AUTH] token lookup failed")
				}
			}

			if pat == nil {
				if token := r.URL.Query().Get("token"); token != "" {
					p, err := tokenRepo.FindTokenByPlainToken(r.Context(), token)
					if err == nil {
						pat = p
					} else {
						logger.WithError(err).WithField("source", "query").Debug("[AUTH] token lookup failed")
					}
				}
			}

			if pat == nil {
				unauthorized(w, "unauthorized")
				return
			}
			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				unauthorized(w, "token expired")
				return
			}

			uid := strconv.FormatInt(pat.UserID, 10)
			ctx := context.WithValue(r.Context(), UserIDKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func GetUserID(ctx context.Context) (string, error) {
	v, ok := ctx.Value(UserIDKey).(string)
	if !ok || v == "" {
		return "", errors.New("userID not found in context")
	}
	return v, nil
}

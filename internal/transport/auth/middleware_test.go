package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/repository"
)

type fakeRepo struct {
	token *repository.PersonalAccessToken
	err   error
	seen  []string
}

func (f *fakeRepo) FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error) {
	f.seen = append(f.seen, plainToken)
	return f.token, f.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSanctumMiddleware_setsUserID(t *testing.T) {
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 123}}

	got := ""
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := GetUserID(r.Context())
		if err != nil {
			t.Fatalf("expected user id present, got err: %v", err)
		}
		got = uid
		w.WriteHeader(http.StatusOK)
	})

	srv := SanctumMiddleware(fr, quietLogger())(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/1/approve", nil)
	req.Header.Set("Authorization", "Bearer 1|mytoken")
	rr := httptest.NewRecorder()

	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
	if got != "123" {
		t.Fatalf("expected user id 123, got %q", got)
	}
	if len(fr.seen) != 1 || fr.seen[0] != "1|mytoken" {
		t.Fatalf("unexpected lookups: %v", fr.seen)
	}
}

func TestSanctumMiddleware_queryToken(t *testing.T) {
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 2, UserID: 7}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/delinquents/export?token=abc", nil)
	rr := httptest.NewRecorder()
	SanctumMiddleware(fr, quietLogger())(handler).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
}

func TestSanctumMiddleware_blockWhenMissing(t *testing.T) {
	fr := &fakeRepo{err: errors.New("token not found")}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with missing token")
	})
	srv := SanctumMiddleware(fr, quietLogger())(handler)

	for _, h := range []string{"", "Bearer ", "Basic abc", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/api/delinquents", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 Unauthorized, got %d", h, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected json body, got %q", ct)
		}
	}
}

func TestSanctumMiddleware_expiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 5, ExpiresAt: &past}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with expired token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/delinquents", nil)
	req.Header.Set("Authorization", "Bearer t")
	rr := httptest.NewRecorder()
	SanctumMiddleware(fr, quietLogger())(handler).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 Unauthorized, got %d", rr.Code)
	}
}

func TestSanctumMiddleware_allowsOptions(t *testing.T) {
	fr := &fakeRepo{}
	reached := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})
	srv := SanctumMiddleware(fr, quietLogger())(handler)

	req := httptest.NewRequest(http.MethodOptions, "/api/delinquents", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 No Content, got %d", rr.Code)
	}
	if !reached {
		t.Fatalf("expected handler to be reached on OPTIONS")
	}
}

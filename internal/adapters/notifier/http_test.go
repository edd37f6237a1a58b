package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestHTTPNotifier_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":true,"detail":"queued"}`))
	}))
	defer srv.Close()

	n := NewHTTPNotifier(nil, srv.URL, "secret", time.Second, quietLogger())
	res, err := n.Send(context.Background(), "6281234567890", "halo")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "queued", res.Detail)
	assert.Equal(t, sendRequest{Target: "6281234567890", Message: "halo"}, got)
}

func TestHTTPNotifier_GatewayRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"reason":"device disconnected"}`))
	}))
	defer srv.Close()

	res, err := NewHTTPNotifier(nil, srv.URL, "", time.Second, quietLogger()).Send(context.Background(), "62811", "x")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "device disconnected", res.Detail)
}

func TestHTTPNotifier_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			w.WriteHeader(http.StatusBadGateway)
		case "/garbage":
			_, _ = w.Write([]byte("<html>"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"status":true}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	_, err := NewHTTPNotifier(nil, srv.URL+"/down", "", time.Second, quietLogger()).Send(ctx, "62811", "x")
	assert.ErrorContains(t, err, "502")

	_, err = NewHTTPNotifier(nil, srv.URL+"/garbage", "", time.Second, quietLogger()).Send(ctx, "62811", "x")
	assert.ErrorContains(t, err, "decode")

	_, err = NewHTTPNotifier(nil, srv.URL+"/slow", "", 20*time.Millisecond, quietLogger()).Send(ctx, "62811", "x")
	assert.Error(t, err)

	_, err = NewHTTPNotifier(nil, "", "", time.Second, quietLogger()).Send(ctx, "62811", "x")
	assert.Error(t, err)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tuition_billing/internal/handlers"
	"tuition_billing/internal/observability"
)

type Server struct {
	httpServer *http.Server
}

// NewRouter registers the public probes and the authenticated /api routes.
// metrics and authMW may be nil.
func NewRouter(h *handlers.Handlers, metrics *observability.Metrics, authMW mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	if metrics != nil {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	if h == nil {
		return r
	}

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if authMW != nil {
		api.Use(authMW)
	}

	api.HandleFunc("/transactions/{id:[0-9]+}", h.GetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}/approve", h.ApproveTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}/reject", h.RejectTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}/status", h.SetTransactionStatus).Methods(http.MethodPut)

	api.HandleFunc("/delinquents", h.ListDelinquents).Methods(http.MethodGet)
	api.HandleFunc("/delinquents/export", h.DownloadDelinquents).Methods(http.MethodGet)
	api.HandleFunc("/delinquents/export", h.StoreDelinquents).Methods(http.MethodPost)

	api.HandleFunc("/students/{id:[0-9]+}/balance", h.StudentBalance).Methods(http.MethodGet)
	api.HandleFunc("/reports/monthly", h.MonthlyStats).Methods(http.MethodGet)
	api.HandleFunc("/notifications/failed", h.FailedNotifications).Methods(http.MethodGet)
	api.HandleFunc("/imports", h.Import).Methods(http.MethodPost)
	api.HandleFunc("/imports", h.ListImports).Methods(http.MethodGet)

	return r
}

func NewServer(port string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

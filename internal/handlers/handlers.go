package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"tuition_billing/internal/services"
	"tuition_billing/internal/services/billing"
	auth "tuition_billing/internal/transport/auth"
)

// Checker reports backend health. *config.Config satisfies it.
type Checker interface {
	CheckConnections(ctx context.Context) error
}

type Handlers struct {
	Services *services.Services
	Checker  Checker
	Logger   *logrus.Logger
}

func New(svc *services.Services, checker Checker, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handlers{Services: svc, Checker: checker, Logger: logger}
}

type envelope struct {
	Data    any    `json:"data"`
	Warning string `json:"warning,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) ok(w http.ResponseWriter, data any, warning string) {
	h.JSON(w, http.StatusOK, envelope{Data: data, Warning: warning})
}

// fail maps engine errors to status codes. Anything unclassified is a 500
// and its detail stays in the log.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		v  *billing.ValidationError
		nf *billing.NotFoundError
	)
	switch {
	case errors.As(err, &v):
		h.JSON(w, http.StatusBadRequest, errorBody{Error: v.Error()})
	case errors.As(err, &nf):
		h.JSON(w, http.StatusNotFound, errorBody{Error: nf.Error()})
	default:
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("[HTTP] request failed")
		h.JSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(r *http.Request, field string) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &billing.ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return id, nil
}

// operatorContext carries the authenticated user into decisions.
func operatorContext(r *http.Request) context.Context {
	ctx := r.Context()
	if uid, err := auth.GetUserID(ctx); err == nil {
		ctx = billing.WithOperator(ctx, uid)
	}
	return ctx
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return &billing.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

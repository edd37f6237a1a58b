package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type healthResp struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var errs []string
	if h.Checker == nil {
		errs = append(errs, "no connection checker configured")
	} else if err := h.Checker.CheckConnections(ctx); err != nil {
		// errors.Join separates the individual failures with newlines
		errs = strings.Split(err.Error(), "\n")
	}

	if len(errs) > 0 {
		h.JSON(w, http.StatusServiceUnavailable, healthResp{OK: false, Errors: errs})
		return
	}
	h.JSON(w, http.StatusOK, healthResp{OK: true})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"tuition_billing/internal/services/billing"
)

func (h *Handlers) FailedNotifications(w http.ResponseWriter, r *http.Request) {
	if h.Services.Notifications == nil {
		h.fail(w, r, errors.New("notification log not configured"))
		return
	}

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > 500 {
			h.fail(w, r, &billing.ValidationError{Field: "limit", Message: "must be between 1 and 500"})
			return
		}
		limit = n
	}

	items, err := h.Services.Notifications.ListFailed(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, items, "")
}

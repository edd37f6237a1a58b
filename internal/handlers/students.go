package handlers

import "net/http"

func (h *Handlers) StudentBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "student_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bal, err := h.Services.Calculator.Balance(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, bal, "")
}

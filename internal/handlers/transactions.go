package handlers

import (
	"net/http"

	"tuition_billing/internal/models"
	"tuition_billing/internal/services/billing"
)

type rejectRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.Services.Approver.Transaction(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, t, "")
}

func (h *Handlers) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.decided(w, r)(h.Services.Approver.Approve(operatorContext(r), id))
}

func (h *Handlers) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req rejectRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.decided(w, r)(h.Services.Approver.Reject(operatorContext(r), id, req.Reason))
}

func (h *Handlers) SetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transaction_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	status, err := models.ParseTransactionStatus(req.Status)
	if err != nil {
		h.fail(w, r, &billing.ValidationError{Field: "status", Message: err.Error()})
		return
	}
	h.decided(w, r)(h.Services.Approver.SetStatus(operatorContext(r), id, status, req.Reason))
}

func (h *Handlers) decided(w http.ResponseWriter, r *http.Request) func(billing.DecisionOutcome, error) {
	return func(out billing.DecisionOutcome, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, out, out.NotificationWarning)
	}
}

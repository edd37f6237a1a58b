package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"tuition_billing/internal/services/billing"
	"tuition_billing/internal/services/export"
)

func filterFromQuery(r *http.Request) (billing.Filter, error) {
	q := r.URL.Query()
	return billing.ParseFilter(q.Get("class_level"), q.Get("category"), q.Get("recurring_fee_id"), q.Get("enrollment_fee_id"))
}

func (h *Handlers) ListDelinquents(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rep, err := h.Services.Calculator.ListDelinquents(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, rep, "")
}

// DownloadDelinquents streams the xlsx workbook. The workbook is rendered
// before any header is written so failures still produce a JSON error.
func (h *Handlers) DownloadDelinquents(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.Services.Export.WriteDelinquents(r.Context(), &buf, f); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.Services.Export.DelinquencyFilename()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handlers) StoreDelinquents(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.Services.Export.StoreDelinquents(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, envelope{Data: out})
}

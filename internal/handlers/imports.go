package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tuition_billing/internal/models"
	"tuition_billing/internal/services/billing"
	"tuition_billing/internal/services/importer"
	auth "tuition_billing/internal/transport/auth"
)

type importRequest struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	BatchSize int    `json:"batch_size"`
}

// Import loads a student roster or a fee catalog from a spreadsheet.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	if h.Services.Importer == nil {
		h.fail(w, r, errors.New("importer not configured"))
		return
	}

	var req importRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		h.fail(w, r, &billing.ValidationError{Field: "type", Message: "one of " + strings.Join(h.Services.Importer.Types(), ", ")})
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		h.fail(w, r, &billing.ValidationError{Field: "source", Message: "is required"})
		return
	}
	if req.BatchSize < 0 || req.BatchSize > 5000 {
		h.fail(w, r, &billing.ValidationError{Field: "batch_size", Message: "must be between 1 and 5000"})
		return
	}

	operator, _ := auth.GetUserID(r.Context())
	res, err := h.Services.Importer.Import(r.Context(), importer.Request{
		Type:      req.Type,
		Source:    req.Source,
		BatchSize: req.BatchSize,
		Operator:  operator,
	})
	var se *importer.SourceError
	switch {
	case errors.Is(err, importer.ErrUnknownType):
		h.fail(w, r, &billing.ValidationError{Field: "type", Message: "one of " + strings.Join(h.Services.Importer.Types(), ", ")})
		return
	case errors.As(err, &se):
		h.fail(w, r, &billing.ValidationError{Field: "source", Message: se.Err.Error()})
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	warning := ""
	if n := len(res.Rejected); n > 0 {
		warning = "some rows were rejected"
	}
	h.ok(w, res, warning)
}

type importPage struct {
	Items []models.ImportRun `json:"items"`
	Total int64              `json:"total"`
}

// ListImports pages through past import runs, newest first.
func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	if h.Services.Imports == nil {
		h.fail(w, r, errors.New("import log not configured"))
		return
	}

	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), 20, 1, 200)
	if err != nil {
		h.fail(w, r, &billing.ValidationError{Field: "limit", Message: err.Error()})
		return
	}
	offset, err := queryInt(q.Get("offset"), 0, 0, 1<<31)
	if err != nil {
		h.fail(w, r, &billing.ValidationError{Field: "offset", Message: err.Error()})
		return
	}

	items, total, err := h.Services.Imports.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []models.ImportRun{}
	}
	h.ok(w, importPage{Items: items, Total: total}, "")
}

func queryInt(raw string, def, lo, hi int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < lo || n > hi {
		return 0, errors.New("must be between " + strconv.FormatInt(lo, 10) + " and " + strconv.FormatInt(hi, 10))
	}
	return n, nil
}

package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tuition_billing/internal/services/billing"
	"tuition_billing/internal/services/export"
)

// MonthlyStats answers /api/reports/monthly?year=YYYY; format=xlsx returns
// the workbook instead of JSON. The current year is used when none is given.
func (h *Handlers) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := time.Now().Year()
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, &billing.ValidationError{Field: "year", Message: "must be an integer"})
			return
		}
		year = n
	}

	if strings.EqualFold(q.Get("format"), "xlsx") {
		var buf bytes.Buffer
		if err := h.Services.Export.WriteMonthly(r.Context(), &buf, year); err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", export.ContentTypeXLSX)
		w.Header().Set("Content-Disposition", `attachment; filename="`+h.Services.Export.MonthlyFilename(year)+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
		return
	}

	stats, err := h.Services.Reporter.MonthlyCollectionStats(r.Context(), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, stats, "")
}

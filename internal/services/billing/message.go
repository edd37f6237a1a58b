package billing

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tuition_billing/internal/models"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount the way parents read it: "Rp 100.000".
func FormatRupiah(amount int64) string {
	return "Rp " + idPrinter.Sprintf("%d", amount)
}

// ComposeMessage builds the decision notification for a student's guardian.
// bal may be nil when the snapshot could not be computed.
func ComposeMessage(st models.Student, t models.Transaction, bal *models.Balance) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Yth. Bapak/Ibu wali dari %s (%s),\n", st.Name, st.StudentNumber)
	switch t.Status {
	case models.StatusApproved:
		fmt.Fprintf(&b, "Pembayaran #%d telah DISETUJUI.\n", t.ID)
	case models.StatusRejected:
		fmt.Fprintf(&b, "Pembayaran #%d DITOLAK.\n", t.ID)
	}

	for _, li := range t.LineItems {
		fmt.Fprintf(&b, "- %s: %s %s\n", li.Target.Category().Label(), lineName(li), FormatRupiah(li.Amount))
	}
	fmt.Fprintf(&b, "Jumlah dibayar: %s\n", FormatRupiah(t.AmountPaid))

	if t.Status == models.StatusRejected && t.RejectionReason != nil {
		fmt.Fprintf(&b, "Alasan: %s\n", *t.RejectionReason)
		b.WriteString("Silakan unggah ulang bukti pembayaran.\n")
	}

	if bal != nil {
		fmt.Fprintf(&b, "Total tagihan: %s\nTotal terbayar: %s\nSisa tagihan: %s\n",
			FormatRupiah(bal.TotalOwed), FormatRupiah(bal.TotalPaid), FormatRupiah(bal.Remaining))
	}
	b.WriteString("Terima kasih.")
	return b.String()
}

func lineName(li models.LineItem) string {
	if li.Description != "" {
		return li.Description
	}
	if id, ok := li.Target.FeeID(); ok {
		return fmt.Sprintf("#%d", id)
	}
	return "pembayaran"
}

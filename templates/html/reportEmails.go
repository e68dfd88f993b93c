package templates

import (
	"fmt"
	"html"
)

// ReportVerifiedSubject is the subject line of the verification email
const ReportVerifiedSubject = "Laporan Anda telah diverifikasi"

// ReportVerifiedEmailData holds the values shown in the verification email
type ReportVerifiedEmailData struct {
	Name     string
	Category string
	Points   int64
	ImageURL string
}

// RenderReportVerifiedEmail generates the HTML sent to a resident once a moderator verified their report
func RenderReportVerifiedEmail(d ReportVerifiedEmailData) string {
	name := d.Name
	if name == "" {
		name = "Warga"
	}
	body := fmt.Sprintf(`<p>Halo %s,</p>
      <p>Laporan sampah kategori <strong>%s</strong> yang Anda kirim sudah diverifikasi petugas.</p>
      <div class="points">+%d poin</div>
      <p><img src="%s" alt="foto laporan" style="max-width:100%%;border-radius:8px"></p>
      <p>Terima kasih telah menjaga lingkungan.</p>`,
		html.EscapeString(name),
		html.EscapeString(d.Category),
		d.Points,
		html.EscapeString(d.ImageURL),
	)
	return renderLayout(html.EscapeString(ReportVerifiedSubject), body)
}

// RenderReportVerifiedText is the plain text part of the verification email
func RenderReportVerifiedText(d ReportVerifiedEmailData) string {
	return fmt.Sprintf("Laporan sampah kategori %s yang Anda kirim sudah diverifikasi. Anda mendapat %d poin.", d.Category, d.Points)
}

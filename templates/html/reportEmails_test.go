package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderReportVerifiedEmail(t *testing.T) {
	out := RenderReportVerifiedEmail(ReportVerifiedEmailData{
		Name:     "Sari <b>",
		Category: "Plastic",
		Points:   10,
		ImageURL: "https://cdn/x.jpg",
	})
	assert.Contains(t, out, "+10 poin")
	assert.Contains(t, out, "Sari &lt;b&gt;")
	assert.Contains(t, out, "https://cdn/x.jpg")
	assert.Contains(t, out, ReportVerifiedSubject)

	assert.Contains(t, RenderReportVerifiedEmail(ReportVerifiedEmailData{Points: 10}), "Halo Warga")
}

func TestRenderGenericEmail(t *testing.T) {
	out := RenderGenericEmail("Hi", "line one\nline <two>")
	assert.Contains(t, out, "line one<br>line &lt;two&gt;")
}

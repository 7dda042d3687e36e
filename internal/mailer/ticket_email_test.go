package mailer

import (
	"strings"
	"testing"

	"github.com/wolfdaybr/validapass/internal/domain"
)

func TestBuildTicketEmail(t *testing.T) {
	b := NewTicketEmailBuilder("https://validapass.com.br", "https://api.qrserver.com/v1/create-qr-code/")
	p := domain.Participant{
		ID:       "a1b2c3d4-e5f6-7890-abcd-ef0123456789",
		Name:     "Maria dos Santos",
		Email:    "maria@example.com",
		Category: domain.CategoryVIP,
	}

	subject, html, err := b.Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if subject != TicketEmailSubject {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{
		"Maria dos Santos",
		"maria@example.com",
		"VIP Wolf",
		"A1B2C3D4",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if !strings.Contains(html, b.QRImageURL(p.ID)) {
		t.Error("html missing QR image url")
	}
	if strings.Contains(html, "{{") {
		t.Error("unrendered template markers in html")
	}
}

func TestValidationAndQRURLs(t *testing.T) {
	b := NewTicketEmailBuilder("https://validapass.com.br", "https://api.qrserver.com/v1/create-qr-code/")

	if got := b.ValidationURL("p-1"); got != "https://validapass.com.br/validar?id=p-1" {
		t.Errorf("validation url = %q", got)
	}
	qr := b.QRImageURL("p-1")
	if !strings.HasPrefix(qr, "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=") {
		t.Errorf("qr url = %q", qr)
	}
	// The QR payload is the escaped validation link.
	if !strings.Contains(qr, "validapass.com.br%2Fvalidar%3Fid%3Dp-1") {
		t.Errorf("qr url does not embed validation link: %q", qr)
	}
}

func TestFromAddress(t *testing.T) {
	if got := FromAddress("Wolf Day Brazil", "noreply@wolfdaybr.com.br"); got != "Wolf Day Brazil <noreply@wolfdaybr.com.br>" {
		t.Errorf("from = %q", got)
	}
}

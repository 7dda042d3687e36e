package mailer

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/osteele/liquid"

	"github.com/wolfdaybr/validapass/internal/domain"
)

// TicketEmailSubject is the fixed subject of the confirmation email.
const TicketEmailSubject = "🎫 Seu ingresso para o Wolf Day Brazil está pronto!"

// ticketEmailTemplate is the Liquid source of the confirmation email body.
const ticketEmailTemplate = `
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #1a1a1a, #4a4a4a); color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
    <h1 style="margin: 0; color: white;">🐺 Wolf Day Brazil</h1>
    <p style="margin: 10px 0 0 0; color: #FFD700;">Seu ingresso está pronto!</p>
  </div>

  <div style="background: white; padding: 30px; border: 1px solid #ddd;">
    <h2>Olá, {{ name }}!</h2>

    <p>Parabéns! Sua inscrição para o Wolf Day Brazil foi confirmada com sucesso.</p>

    <div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 20px 0;">
      <h3 style="margin-top: 0;">📋 Informações do Ingresso</h3>
      <p><strong>Nome:</strong> {{ name }}</p>
      <p><strong>Email:</strong> {{ email }}</p>
      <p><strong>Categoria:</strong> {{ category }}</p>
      <p><strong>ID do Ingresso:</strong> {{ short_id }}</p>
    </div>

    <div style="text-align: center; margin: 30px 0; padding: 20px; background: #f8f9fa; border-radius: 8px;">
      <h3>🎫 QR Code do Ingresso</h3>
      <p><strong>Apresente este QR Code na entrada do evento:</strong></p>
      <div style="background: white; padding: 20px; border-radius: 8px; display: inline-block; margin: 10px 0;">
        <img src="{{ qr_image_url }}" alt="QR Code do Ingresso" style="width: 200px; height: 200px; display: block;" />
      </div>
      <p style="font-size: 12px; color: #666; margin-top: 10px;">
        Este QR Code contém todas as informações do seu ingresso.<br/>
        Guarde este email - ele é o seu ingresso oficial!
      </p>
    </div>

    <div style="background: #fff3cd; border: 1px solid #ffeaa7; padding: 15px; border-radius: 5px; margin: 20px 0;">
      <h4>📌 Instruções Importantes:</h4>
      <ul>
        <li>Guarde este email com cuidado - ele contém seu ingresso oficial</li>
        <li>Apresente o QR Code na entrada do evento</li>
        <li>Você pode imprimir este email ou mostrar no celular</li>
        <li>Chegue com antecedência para evitar filas</li>
        <li>Traga um documento de identidade com foto</li>
      </ul>
    </div>

    <p>Estamos ansiosos para vê-lo no Wolf Day Brazil!</p>

    <p>Atenciosamente,<br/>
    <strong>Equipe Wolf Day Brazil</strong></p>
  </div>

  <div style="background: #f8f9fa; padding: 20px; text-align: center; border-radius: 0 0 10px 10px; font-size: 12px; color: #666;">
    <p>Este é um email automático. Se você não se inscreveu para o Wolf Day Brazil, pode ignorar esta mensagem.</p>
    <p>© 2024 Wolf Day Brazil - Todos os direitos reservados</p>
  </div>
</div>
`

// TicketEmailBuilder renders confirmation emails from the Liquid template.
type TicketEmailBuilder struct {
	engine            *liquid.Engine
	validationBaseURL string
	qrImageBaseURL    string

	once sync.Once
	tpl  *liquid.Template
	terr error
}

// NewTicketEmailBuilder creates a builder. validationBaseURL is the site the
// QR code points at; qrImageBaseURL is the QR rendering service.
func NewTicketEmailBuilder(validationBaseURL, qrImageBaseURL string) *TicketEmailBuilder {
	if validationBaseURL == "" {
		validationBaseURL = "https://validapass.com.br"
	}
	if qrImageBaseURL == "" {
		qrImageBaseURL = "https://api.qrserver.com/v1/create-qr-code/"
	}
	return &TicketEmailBuilder{
		engine:            liquid.NewEngine(),
		validationBaseURL: validationBaseURL,
		qrImageBaseURL:    qrImageBaseURL,
	}
}

// ValidationURL returns the page a scanned QR code opens.
func (b *TicketEmailBuilder) ValidationURL(participantID string) string {
	return fmt.Sprintf("%s/validar?id=%s", b.validationBaseURL, url.QueryEscape(participantID))
}

// QRImageURL returns the rendered QR image for the participant's validation
// link.
func (b *TicketEmailBuilder) QRImageURL(participantID string) string {
	return fmt.Sprintf("%s?size=200x200&data=%s",
		b.qrImageBaseURL, url.QueryEscape(b.ValidationURL(participantID)))
}

// Build renders subject and HTML body for the participant's ticket.
func (b *TicketEmailBuilder) Build(p domain.Participant) (subject, html string, err error) {
	b.once.Do(func() {
		b.tpl, b.terr = b.engine.ParseString(ticketEmailTemplate)
	})
	if b.terr != nil {
		return "", "", fmt.Errorf("parse ticket template: %w", b.terr)
	}

	bindings := map[string]interface{}{
		"name":         p.Name,
		"email":        p.Email,
		"category":     string(p.Category),
		"short_id":     p.ShortID(),
		"qr_image_url": b.QRImageURL(p.ID),
	}
	out, err := b.tpl.RenderString(bindings)
	if err != nil {
		return "", "", fmt.Errorf("render ticket template: %w", err)
	}
	return TicketEmailSubject, out, nil
}

// FromAddress formats the display From header.
func FromAddress(name, email string) string {
	return fmt.Sprintf("%s <%s>", name, email)
}

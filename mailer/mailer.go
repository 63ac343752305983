// Package mailer sends the transactional storefront emails: pickup
// confirmations and payment instructions for offline methods.
package mailer

import (
	"bytes"
	"fmt"
	"log"
	"net/smtp"
	"text/template"
	"time"

	"tienda/config"
	"tienda/models"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "pickup"}}Tu pedido está reservado.

Presenta este código en tienda para pagar y recoger: {{.Reference}}
La reservación vence el {{.Expires}}.{{end}}

{{define "bank"}}Completa tu pago por transferencia bancaria (SPEI).

Banco: {{.Bank}}
CLABE: {{.CLABE}}
Monto: ${{.Amount}} MXN
Paga antes del {{.Expires}} o tu pedido será cancelado.{{end}}

{{define "oxxo"}}Completa tu pago en cualquier OXXO.

Referencia: {{.Reference}}
Código de barras: {{.Barcode}}
Monto: ${{.Amount}} MXN
Paga antes del {{.Expires}} o tu pedido será cancelado.{{end}}
`))

// Mailer sends templated mail over SMTP. When SMTP is not configured
// it logs the rendered message instead, which keeps development and
// tests side-effect free.
type Mailer struct {
	host    string
	port    string
	from    string
	pass    string
	enabled bool
}

func New(cfg config.Config) *Mailer {
	return &Mailer{
		host:    cfg.SMTPHost,
		port:    cfg.SMTPPort,
		from:    cfg.SMTPFrom,
		pass:    cfg.SMTPPass,
		enabled: cfg.MailEnabled(),
	}
}

// SendPickupConfirmation mails the in-store payment reference.
func (m *Mailer) SendPickupConfirmation(to, reference string, expires time.Time) error {
	return m.send(to, "Reservación de pedido", "pickup", map[string]any{
		"Reference": reference,
		"Expires":   expires.Format("02/01/2006"),
	})
}

// SendBankInstructions mails the SPEI transfer details.
func (m *Mailer) SendBankInstructions(to string, info models.BankInfo) error {
	return m.send(to, "Instrucciones de pago por transferencia", "bank", map[string]any{
		"Bank":    info.Bank,
		"CLABE":   info.CLABE,
		"Amount":  formatAmount(info.Amount),
		"Expires": info.ExpiresAt.Format("02/01/2006"),
	})
}

// SendOxxoInstructions mails the OXXO payment reference.
func (m *Mailer) SendOxxoInstructions(to string, info models.OxxoInfo) error {
	return m.send(to, "Instrucciones de pago en OXXO", "oxxo", map[string]any{
		"Reference": info.Reference,
		"Barcode":   info.BarcodeURL,
		"Amount":    formatAmount(info.Amount),
		"Expires":   info.ExpiresAt.Format("02/01/2006"),
	})
}

func (m *Mailer) send(to, subject, tmpl string, data map[string]any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s mail: %w", tmpl, err)
	}

	if !m.enabled {
		log.Printf("mailer disabled, would send %q to %s:\n%s", subject, to, body.String())
		return nil
	}

	msg := []byte("Subject: " + subject + "\r\n\r\n" + body.String())
	auth := smtp.PlainAuth("", m.from, m.pass, m.host)
	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send %s mail: %w", tmpl, err)
	}
	return nil
}

// formatAmount renders minor units as pesos with two decimals.
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

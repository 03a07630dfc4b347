package inquiry

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/kardainfra/karda/models"
)

// Notifier tells someone about a new inquiry.
type Notifier interface {
	Notify(ctx context.Context, in models.Inquiry) error
}

// SMTPConfig is the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Mailer emails each inquiry to the sales contact.
type Mailer struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Notify sends the inquiry. Servers without AUTH get a second,
// unauthenticated attempt.
func (m *Mailer) Notify(_ context.Context, in models.Inquiry) error {
	msg := m.message(in)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	err := m.send(msg, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(msg, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send inquiry %d: %w", in.CaseID, err)
	}
	return nil
}

func (m *Mailer) message(in models.Inquiry) *email.Email {
	e := email.NewEmail()
	e.From = fmt.Sprintf("Karda Terminal <%s>", m.cfg.From)
	e.To = []string{m.cfg.To}
	e.ReplyTo = []string{in.Email}
	e.Subject = fmt.Sprintf("Inquiry %d: %s", in.CaseID, in.AssetID)
	e.Text = []byte(fmt.Sprintf(`New purchase-information request.

Case ID:  %d
Asset:    %s (%s)
Name:     %s
Company:  %s
Email:    %s
Phone:    %s

%s
`, in.CaseID, in.AssetID, in.AssetName, in.FullName, in.Company, in.Email, in.Phone, in.Context))
	return e
}

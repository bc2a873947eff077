package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	Body    string // plain text, wrapped in a paragraph on send
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer delivers over STARTTLS with plain auth, one connection per message.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) (*SMTPMailer, error) {
	c, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(user),
		mail.WithPassword(password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	if from == "" {
		from = user
	}
	return &SMTPMailer{client: c, from: from}, nil
}

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("from %q: %w", s.from, err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("to %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextHTML, "<p>"+html.EscapeString(m.Body)+"</p>")
	return s.client.DialAndSendWithContext(ctx, msg)
}

// LogMailer only logs; used when no SMTP credentials are configured.
type LogMailer struct{ Log *zap.Logger }

func (l LogMailer) Send(_ context.Context, m Message) error {
	l.Log.Info("mail (not sent, smtp disabled)",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
	return nil
}

// NewMailer returns an SMTP mailer when credentials are configured and a
// LogMailer otherwise.
func NewMailer(cfg config.Config, log *zap.Logger) (Mailer, error) {
	if !cfg.MailEnabled() {
		log.Warn("EMAIL_USER/EMAIL_PASS not set; notifications are only logged")
		return LogMailer{Log: log}, nil
	}
	m, err := NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	if err != nil {
		return nil, err
	}
	return m, nil
}

package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings. The sender address is the account
// the relay authenticates, so Username doubles as the From address.
type SMTPConfig struct {
	Host     string // e.g. "smtp.gmail.com"
	Port     int    // e.g. 465
	Secure   bool   // implicit TLS when true, mandatory STARTTLS otherwise
	Username string
	Password string
	Timeout  time.Duration
}

// smtpClient is the concrete Sender backed by an SMTP relay. A connection is
// opened per message; nothing is pooled between invocations.
type smtpClient struct {
	cfg SMTPConfig
}

// NewSMTPClient returns a Sender that delivers through the relay in cfg.
func NewSMTPClient(cfg SMTPConfig) Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &smtpClient{cfg: cfg}
}

// Send builds the MIME message, dials the relay and hands the message over.
func (c *smtpClient) Send(ctx context.Context, m Message) (string, error) {
	msg, err := buildMessage(c.cfg.Username, m)
	if err != nil {
		return "", err
	}

	client, err := c.dial()
	if err != nil {
		return "", fmt.Errorf("email: configure client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("email: send to %s: %w", m.To, err)
	}
	return msg.GetMessageID(), nil
}

func (c *smtpClient) dial() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.cfg.Username),
		mail.WithPassword(c.cfg.Password),
		mail.WithTimeout(c.cfg.Timeout),
	}
	if c.cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(c.cfg.Host, opts...)
}

// buildMessage turns m into a go-mail message sent from fromAddr under
// m.FromName.
func buildMessage(fromAddr string, m Message) (*mail.Msg, error) {
	if m.To == "" {
		return nil, ErrNoRecipient
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.FromName, fromAddr); err != nil {
		return nil, fmt.Errorf("email: from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("email: recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

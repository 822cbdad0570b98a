package client

import (
	"context"
	"fmt"

	"lupora-api/internal/config"
	"lupora-api/internal/model"

	"github.com/wneessen/go-mail"
)

type MailClient interface {
	Send(ctx context.Context, msg model.MailMessage) error
}

type smtpMailClient struct {
	cfg config.Mail
}

func NewMailClient(mailCfg config.Mail) MailClient {
	return &smtpMailClient{cfg: mailCfg}
}

func (c *smtpMailClient) Send(ctx context.Context, msg model.MailMessage) error {
	m, err := c.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(c.cfg.SendTimeout),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}

	smtp, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("new smtp client: %w", err)
	}

	if err := smtp.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

func (c *smtpMailClient) buildMessage(msg model.MailMessage) (*mail.Msg, error) {
	from := c.cfg.From
	if from == "" {
		from = c.cfg.Username
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("set from %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("set to %q: %w", msg.To, err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("set reply-to %q: %w", msg.ReplyTo, err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	return m, nil
}

package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/smtppool"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	MaxConns int
	Timeout  time.Duration
}

// SMTPSender implements EmailSender over a pooled SMTP connection.
type SMTPSender struct {
	pool *smtppool.Pool
	host string
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	var auth smtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	pool, err := smtppool.New(smtppool.Opt{
		Host:            cfg.Host,
		Port:            cfg.Port,
		MaxConns:        cfg.MaxConns,
		IdleTimeout:     cfg.Timeout,
		PoolWaitTimeout: cfg.Timeout,
		TLSConfig:       &tls.Config{ServerName: cfg.Host},
		Auth:            auth,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp: failed to create pool: %w", err)
	}
	return &SMTPSender{pool: pool, host: cfg.Host}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, msg EmailMessage) (model.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return model.Receipt{}, appErrors.NewProvider("smtp", err)
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)
	headers := textproto.MIMEHeader{}
	headers.Set("Message-Id", id)

	err := s.pool.Send(smtppool.Email{
		From:    formatAddress(msg.FromName, msg.From),
		To:      []string{formatAddress(msg.ToName, msg.To)},
		Subject: msg.Subject,
		HTML:    []byte(msg.Message),
		Headers: headers,
	})
	if err != nil {
		return model.Receipt{}, appErrors.NewProvider("smtp", err)
	}

	return model.Receipt{MessageID: id, Status: model.DeliverySent, To: msg.To, From: msg.From}, nil
}

func (s *SMTPSender) Close() {
	s.pool.Close()
}

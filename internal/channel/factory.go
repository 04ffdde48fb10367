package channel

import (
	"context"
	"fmt"

	"github.com/unclebandit/bulk-messenger/internal/config"
	"github.com/unclebandit/bulk-messenger/internal/logger"
)

// NewEmailSender builds the configured email provider behind the email rate limit.
func NewEmailSender(ctx context.Context, cfg *config.Config, log *logger.Logger) (EmailSender, error) {
	var sender EmailSender
	switch cfg.Email.Provider {
	case "gmail":
		g, err := NewGmailSender(ctx, cfg.Email.Gmail.ClientID, cfg.Email.Gmail.ClientSecret, cfg.Email.Gmail.RefreshToken)
		if err != nil {
			return nil, err
		}
		sender = g
	case "smtp":
		s, err := NewSMTPSender(SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
		})
		if err != nil {
			return nil, err
		}
		sender = s
	case "log", "":
		sender = NewLogSender(log)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}

	log.Info().
		Str("provider", cfg.Email.Provider).
		Int("per_window", cfg.RateLimit.EmailPerWindow).
		Dur("window", cfg.RateLimit.Window).
		Msg("email channel ready")
	return &RateLimitedEmail{
		Next:    sender,
		Limiter: NewLimiter(cfg.RateLimit.EmailPerWindow, cfg.RateLimit.Window),
	}, nil
}

// NewSMSSender builds the configured SMS provider behind the SMS rate limit.
func NewSMSSender(cfg *config.Config, log *logger.Logger) (SMSSender, error) {
	var sender SMSSender
	switch cfg.SMS.Provider {
	case "twilio":
		t, err := NewTwilioSender(TwilioConfig{
			AccountSID: cfg.SMS.Twilio.AccountSID,
			AuthToken:  cfg.SMS.Twilio.AuthToken,
			BaseURL:    cfg.SMS.Twilio.BaseURL,
			Timeout:    cfg.SMS.Twilio.Timeout,
		})
		if err != nil {
			return nil, err
		}
		sender = t
	case "log", "":
		sender = NewLogSender(log)
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}

	log.Info().
		Str("provider", cfg.SMS.Provider).
		Int("per_window", cfg.RateLimit.SMSPerWindow).
		Dur("window", cfg.RateLimit.Window).
		Msg("sms channel ready")
	return &RateLimitedSMS{
		Next:    sender,
		Limiter: NewLimiter(cfg.RateLimit.SMSPerWindow, cfg.RateLimit.Window),
	}, nil
}

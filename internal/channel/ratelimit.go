package channel

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

// NewLimiter allows perWindow sends per window, bursting up to perWindow.
// A non-positive perWindow or window disables limiting.
func NewLimiter(perWindow int, window time.Duration) *rate.Limiter {
	if perWindow <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(perWindow)), perWindow)
}

// RateLimitedEmail waits for the limiter before every send.
type RateLimitedEmail struct {
	Next    EmailSender
	Limiter *rate.Limiter
}

func (r *RateLimitedEmail) SendEmail(ctx context.Context, msg EmailMessage) (model.Receipt, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return model.Receipt{}, appErrors.NewProvider("email", err)
	}
	return r.Next.SendEmail(ctx, msg)
}

// RateLimitedSMS waits for the limiter before every send.
type RateLimitedSMS struct {
	Next    SMSSender
	Limiter *rate.Limiter
}

func (r *RateLimitedSMS) SendSMS(ctx context.Context, msg SMSMessage) (model.Receipt, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return model.Receipt{}, appErrors.NewProvider("sms", err)
	}
	return r.Next.SendSMS(ctx, msg)
}

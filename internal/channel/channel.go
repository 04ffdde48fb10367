// Package channel delivers one message to one recipient over email or SMS.
package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/unclebandit/bulk-messenger/internal/model"
)

type EmailMessage struct {
	To       string
	ToName   string
	From     string
	FromName string
	Subject  string
	// Message is the HTML body
	Message string
}

type SMSMessage struct {
	To      string
	From    string
	Message string
}

// EmailSender sends one email. Failures are *appErrors.ProviderError.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (model.Receipt, error)
}

// SMSSender sends one text message. Failures are *appErrors.ProviderError.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) (model.Receipt, error)
}

// FormatPhoneNumber normalizes a phone number to E.164 where the digit count allows it.
// Ten digits get a +1 country code; eleven digits starting with 1, or more than
// eleven digits, get a leading +. Anything else is returned unchanged.
func FormatPhoneNumber(phone string) string {
	digits := model.DigitsOnly(phone)
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	case len(digits) > 11:
		return "+" + digits
	}
	return phone
}

// formatAddress renders `"Name" <addr>` or the bare address.
func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%q <%s>", name, addr)
}

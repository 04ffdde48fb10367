package channel

import (
	"context"

	"github.com/google/uuid"

	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

// LogSender accepts every message and only logs it. Used in development.
type LogSender struct {
	Log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSender{Log: log.WithComponent("log_channel")}
}

func (l *LogSender) SendEmail(ctx context.Context, msg EmailMessage) (model.Receipt, error) {
	id := uuid.NewString()
	l.Log.Info().
		Str("message_id", id).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("bytes", len(msg.Message)).
		Msg("email accepted")
	return model.Receipt{MessageID: id, Status: model.DeliverySent, To: msg.To, From: msg.From}, nil
}

func (l *LogSender) SendSMS(ctx context.Context, msg SMSMessage) (model.Receipt, error) {
	id := uuid.NewString()
	to := FormatPhoneNumber(msg.To)
	l.Log.Info().
		Str("message_id", id).
		Str("to", to).
		Int("chars", len([]rune(msg.Message))).
		Msg("sms accepted")
	return model.Receipt{MessageID: id, Status: model.DeliverySent, To: to, From: msg.From}, nil
}

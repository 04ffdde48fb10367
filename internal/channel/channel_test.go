package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/bulk-messenger/internal/config"
	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
)

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"(843) 555-0100", "+18435550100"},
		{"1-843-555-0100", "+18435550100"},
		{"44 20 7946 0958 12", "+44207946095812"},
		{"555-0100", "555-0100"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPhoneNumber(tt.in), tt.in)
	}
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "a@example.com", formatAddress("", "a@example.com"))
	assert.Equal(t, `"Ann Lee" <a@example.com>`, formatAddress("Ann Lee", "a@example.com"))
}

func TestTwilioSender(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":20003,"message":"Authenticate"}`))
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotForm = map[string]string{"To": r.PostForm.Get("To"), "From": r.PostForm.Get("From"), "Body": r.PostForm.Get("Body")}
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1","status":"queued","to":"+18435550100","from":"+18435550199"}`))
	}))
	defer srv.Close()

	sender, err := NewTwilioSender(TwilioConfig{AccountSID: "AC123", AuthToken: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	receipt, err := sender.SendSMS(context.Background(), SMSMessage{To: "843-555-0100", From: "+18435550199", Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "SM1", receipt.MessageID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, map[string]string{"To": "+18435550100", "From": "+18435550199", "Body": "Hi"}, gotForm)

	bad, err := NewTwilioSender(TwilioConfig{AccountSID: "AC123", AuthToken: "wrong", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = bad.SendSMS(context.Background(), SMSMessage{To: "8435550100", From: "+18435550199", Message: "Hi"})
	require.Error(t, err)
	assert.True(t, appErrors.IsProvider(err))
	assert.Contains(t, err.Error(), "Authenticate")

	_, err = sender.SendSMS(context.Background(), SMSMessage{To: "8435550100", Message: "Hi"})
	assert.True(t, appErrors.IsProvider(err))

	_, err = NewTwilioSender(TwilioConfig{})
	assert.Error(t, err)
}

func TestRateLimitedSMS_StopsOnCancel(t *testing.T) {
	limited := &RateLimitedSMS{Next: NewLogSender(nil), Limiter: NewLimiter(1, time.Hour)}

	_, err := limited.SendSMS(context.Background(), SMSMessage{To: "8435550100", Message: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.SendSMS(ctx, SMSMessage{To: "8435550100", Message: "second"})
	require.Error(t, err)
	assert.True(t, appErrors.IsProvider(err))
}

func TestNewLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
}

func TestFactory_LogProviders(t *testing.T) {
	cfg := &config.Config{}
	email, err := NewEmailSender(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	receipt, err := email.SendEmail(context.Background(), EmailMessage{To: "a@example.com", Subject: "s", Message: "m"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.MessageID)

	sms, err := NewSMSSender(cfg, logger.Nop())
	require.NoError(t, err)
	receipt, err = sms.SendSMS(context.Background(), SMSMessage{To: "8435550100", Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, "+18435550100", receipt.To)

	cfg.Email.Provider = "pigeon"
	_, err = NewEmailSender(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

package channel

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

// GmailSender implements EmailSender using the Gmail API.
type GmailSender struct {
	service *gmail.Service
}

// NewGmailSender creates a GmailSender using OAuth2 client credentials + refresh token.
func NewGmailSender(ctx context.Context, clientID, clientSecret, refreshToken string) (*GmailSender, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail: client id, client secret and refresh token are required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	client := oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}
	return &GmailSender{service: svc}, nil
}

func (g *GmailSender) SendEmail(ctx context.Context, msg EmailMessage) (model.Receipt, error) {
	raw := strings.Join([]string{
		"To: " + formatAddress(msg.ToName, msg.To),
		"From: " + formatAddress(msg.FromName, msg.From),
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		msg.Message,
	}, "\r\n")

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return model.Receipt{}, appErrors.NewProvider("gmail", err)
	}

	return model.Receipt{
		MessageID: sent.Id,
		Status:    model.DeliverySent,
		To:        msg.To,
		From:      msg.From,
	}, nil
}

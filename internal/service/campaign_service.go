// internal/service/campaign_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/bulk-messenger/internal/channel"
	"github.com/unclebandit/bulk-messenger/internal/config"
	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/queue"
	"github.com/unclebandit/bulk-messenger/internal/repository"
)

// TemplateSource looks templates up by name. *TemplateService implements it.
type TemplateSource interface {
	Get(name string) (*model.Template, bool)
}

// RunOptions describes one campaign run.
type RunOptions struct {
	Channel  model.Channel
	Subject  string
	Template string
	Message  string
	Delay    time.Duration
	// Level defaults to full for templates and basic for raw messages
	Level     model.Level
	AIContext *model.AIContext
}

// CampaignService sends one message to a batch of contacts, strictly in input order.
type CampaignService struct {
	Email      channel.EmailSender
	SMS        channel.SMSSender
	Customizer *Customizer
	Templates  TemplateSource
	// Events receives one DeliveryEvent per send attempt when set
	Events     queue.Queue
	Deliveries repository.DeliveryRepositoryInterface
	Sender     config.SenderConfig
	Log        *logger.Logger
}

func (s *CampaignService) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

func (s *CampaignService) checkChannel(ch model.Channel) error {
	switch ch {
	case model.ChannelEmail:
		if s.Email == nil {
			return appErrors.NewValidation("email channel is not configured")
		}
	case model.ChannelSMS:
		if s.SMS == nil {
			return appErrors.NewValidation("sms channel is not configured")
		}
	default:
		return appErrors.NewValidation(fmt.Sprintf("unknown message type %q", ch))
	}
	return nil
}

// Run delivers to every contact in order. Per-recipient failures are collected in
// the result; an error is returned only when the run cannot start.
func (s *CampaignService) Run(ctx context.Context, contacts []model.Contact, opts RunOptions) (*model.CampaignResult, error) {
	if err := s.checkChannel(opts.Channel); err != nil {
		return nil, err
	}

	body, subject := opts.Message, opts.Subject
	level := opts.Level
	if opts.Template != "" {
		if s.Templates == nil {
			return nil, appErrors.NewValidation("template store is not configured")
		}
		t, ok := s.Templates.Get(opts.Template)
		if !ok {
			return nil, appErrors.NewNotFound("template", opts.Template)
		}
		body = t.Content
		if subject == "" {
			subject = t.Subject
		}
		if level == "" {
			level = model.LevelFull
		}
	} else {
		if body == "" {
			return nil, appErrors.NewValidation("either template or message is required")
		}
		if level == "" {
			level = model.LevelBasic
		}
	}
	if !level.Valid() {
		return nil, appErrors.NewValidation("unknown customization level: " + string(level))
	}

	res := s.newResult(opts.Channel)
	log := s.log().With().Str("campaign_id", res.CampaignID).Logger()
	log.Info().
		Str("channel", string(opts.Channel)).
		Str("template", opts.Template).
		Int("contacts", len(contacts)).
		Msg("campaign started")

	for i, contact := range contacts {
		if err := ctx.Err(); err != nil {
			s.abandon(res, contacts[i:], err)
			break
		}

		msg, subj, err := s.customize(body, subject, contact, Options{Level: level, AIContext: opts.AIContext})
		if err != nil {
			res.Warnings = append(res.Warnings, model.RecipientError{Contact: contact, Error: err.Error()})
			log.Warn().Err(err).Str("contact", contact.Label()).Msg("customization failed, sending basic personalization")
		}

		s.deliverOne(ctx, res, opts.Channel, contact, subj, msg)

		if i < len(contacts)-1 && !s.pause(ctx, opts.Delay) {
			s.abandon(res, contacts[i+1:], ctx.Err())
			break
		}
	}

	res.FinishedAt = time.Now()
	log.Info().
		Int("successful", res.Successful).
		Int("failed", res.Failed).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("campaign finished")
	return res, nil
}

// SendProcessed delivers messages that were already customized per contact.
func (s *CampaignService) SendProcessed(ctx context.Context, processed []model.ProcessedMessage, ch model.Channel, delay time.Duration) (*model.CampaignResult, error) {
	if err := s.checkChannel(ch); err != nil {
		return nil, err
	}

	res := s.newResult(ch)
	for i, pm := range processed {
		if err := ctx.Err(); err != nil {
			for _, rest := range processed[i:] {
				s.fail(res, ch, rest.Contact, "campaign cancelled: "+err.Error())
			}
			break
		}

		s.deliverOne(ctx, res, ch, pm.Contact, pm.Subject, pm.Message)

		if i < len(processed)-1 && !s.pause(ctx, delay) {
			for _, rest := range processed[i+1:] {
				s.fail(res, ch, rest.Contact, "campaign cancelled: "+ctx.Err().Error())
			}
			break
		}
	}
	res.FinishedAt = time.Now()
	s.log().Info().
		Str("campaign_id", res.CampaignID).
		Int("successful", res.Successful).
		Int("failed", res.Failed).
		Msg("processed messages sent")
	return res, nil
}

func (s *CampaignService) newResult(ch model.Channel) *model.CampaignResult {
	return &model.CampaignResult{
		CampaignID: uuid.NewString(),
		Channel:    ch,
		Errors:     []model.RecipientError{},
		StartedAt:  time.Now(),
	}
}

// customize falls back to basic personalization of both texts when the requested level fails.
func (s *CampaignService) customize(body, subject string, contact model.Contact, opts Options) (string, string, error) {
	c := s.Customizer
	if c == nil {
		c = NewCustomizer(s.Log)
	}
	msg, err := c.Customize(body, contact, opts)
	if err == nil {
		if subject == "" {
			return msg, "", nil
		}
		subj, serr := c.Customize(subject, contact, opts)
		if serr == nil {
			return msg, subj, nil
		}
		err = serr
	}
	return c.Personalize(body, contact), c.Personalize(subject, contact), err
}

func (s *CampaignService) deliverOne(ctx context.Context, res *model.CampaignResult, ch model.Channel, contact model.Contact, subject, msg string) {
	receipt, err := s.send(ctx, ch, contact, subject, msg)
	if err != nil {
		s.fail(res, ch, contact, err.Error())
		return
	}
	res.Successful++
	s.publish(res.CampaignID, ch, contact, model.DeliverySent, receipt.MessageID, "")
}

func (s *CampaignService) fail(res *model.CampaignResult, ch model.Channel, contact model.Contact, reason string) {
	res.Failed++
	res.Errors = append(res.Errors, model.RecipientError{Contact: contact, Error: reason})
	s.publish(res.CampaignID, ch, contact, model.DeliveryFailed, "", reason)
}

func (s *CampaignService) abandon(res *model.CampaignResult, rest []model.Contact, cause error) {
	reason := "campaign cancelled"
	if cause != nil {
		reason += ": " + cause.Error()
	}
	for _, c := range rest {
		s.fail(res, res.Channel, c, reason)
	}
}

// pause waits d between sends and reports false when ctx ends first.
func (s *CampaignService) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *CampaignService) send(ctx context.Context, ch model.Channel, contact model.Contact, subject, msg string) (model.Receipt, error) {
	switch ch {
	case model.ChannelEmail:
		to := contact.Email()
		if to == "" {
			return model.Receipt{}, errors.New("contact has no email address")
		}
		if subject == "" {
			subject = s.Sender.DefaultSubject
		}
		return s.Email.SendEmail(ctx, channel.EmailMessage{
			To:       to,
			ToName:   contact.Name(),
			From:     s.Sender.FromEmail,
			FromName: s.Sender.FromName,
			Subject:  subject,
			Message:  msg,
		})
	case model.ChannelSMS:
		to := contact.Phone()
		if to == "" {
			return model.Receipt{}, errors.New("contact has no phone number")
		}
		return s.SMS.SendSMS(ctx, channel.SMSMessage{
			To:      to,
			From:    s.Sender.PhoneNumber,
			Message: msg,
		})
	}
	return model.Receipt{}, fmt.Errorf("unknown channel %q", ch)
}

func (s *CampaignService) publish(campaignID string, ch model.Channel, contact model.Contact, status, providerID, lastError string) {
	if s.Events == nil {
		return
	}
	recipient := contact.Email()
	if ch == model.ChannelSMS {
		recipient = contact.Phone()
	}
	payload, err := json.Marshal(model.DeliveryEvent{
		CampaignID:        campaignID,
		Channel:           ch,
		Recipient:         recipient,
		ContactName:       contact.Name(),
		Status:            status,
		ProviderMessageID: providerID,
		LastError:         lastError,
		CreatedAt:         time.Now().UTC(),
	})
	if err != nil {
		s.log().Warn().Err(err).Msg("failed to encode delivery event")
		return
	}
	if err := s.Events.Publish(queue.DeliveryTopic, payload); err != nil {
		s.log().Debug().Err(err).Str("campaign_id", campaignID).Msg("delivery event not published")
	}
}

// CampaignStats aggregates recorded delivery outcomes of one run.
func (s *CampaignService) CampaignStats(ctx context.Context, campaignID string) (map[string]int, error) {
	if s.Deliveries == nil {
		return nil, appErrors.NewValidation("delivery log is not enabled")
	}
	return s.Deliveries.GetCampaignStats(ctx, campaignID)
}

// internal/controller/messaging_controller.go
package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/bulk-messenger/internal/config"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/scheduler"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

// CampaignSender delivers customized messages. *service.CampaignService implements it.
type CampaignSender interface {
	SendProcessed(ctx context.Context, processed []model.ProcessedMessage, ch model.Channel, delay time.Duration) (*model.CampaignResult, error)
	CampaignStats(ctx context.Context, campaignID string) (map[string]int, error)
}

// ContactSource loads a named contact file. *service.ContactService implements it.
type ContactSource interface {
	LoadNamed(name string) ([]model.Contact, error)
}

// TaskCreator schedules a recurring campaign. *scheduler.Scheduler implements it.
type TaskCreator interface {
	Create(in scheduler.TaskInput) (*model.ScheduledTask, error)
}

type MessagingController struct {
	Customizer *service.Customizer
	Campaigns  CampaignSender
	Contacts   ContactSource
	Tasks      TaskCreator
	Delays     config.CampaignConfig
	Log        *logger.Logger
}

func (c *MessagingController) delayFor(ch model.Channel, ms *int64) time.Duration {
	if ms != nil {
		if *ms < 0 {
			return 0
		}
		return time.Duration(*ms) * time.Millisecond
	}
	return c.Delays.DelayFor(string(ch))
}

func (c *MessagingController) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": map[string]bool{
			"bot":              c.Campaigns != nil,
			"messageProcessor": c.Customizer != nil,
			"contactManager":   c.Contacts != nil,
		},
	})
}

type scheduleRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	CronExpression string `json:"cronExpression"`
	Timezone       string `json:"timezone"`
	Delay          *int64 `json:"delay"`
}

// ProcessAIMessage customizes a message for every contact and then, depending on the
// request, returns a preview, sends immediately, or schedules a recurring task.
func (c *MessagingController) ProcessAIMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message            string           `json:"message"`
		Subject            string           `json:"subject"`
		MessageType        model.Channel    `json:"messageType"`
		Contacts           []model.Contact  `json:"contacts"`
		ContactFile        string           `json:"contactFile"`
		AIContext          *model.AIContext `json:"aiContext"`
		CustomizationLevel model.Level      `json:"customizationLevel"`
		SendImmediately    bool             `json:"sendImmediately"`
		Schedule           *scheduleRequest `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	if strings.TrimSpace(body.Message) == "" {
		WriteBadRequest(w, "Message content is required")
		return
	}
	if body.MessageType == "" {
		body.MessageType = model.ChannelEmail
	}
	if !body.MessageType.Valid() {
		WriteBadRequest(w, "messageType must be email or sms")
		return
	}
	if body.CustomizationLevel == "" {
		body.CustomizationLevel = model.LevelFull
	}
	if !body.CustomizationLevel.Valid() {
		WriteBadRequest(w, "customizationLevel must be basic, full or advanced")
		return
	}

	contacts := body.Contacts
	if len(contacts) == 0 && body.ContactFile != "" {
		loaded, err := c.Contacts.LoadNamed(body.ContactFile)
		if err != nil {
			WriteError(w, c.Log, "Failed to load contacts", err)
			return
		}
		contacts = loaded
	}
	if len(contacts) == 0 {
		WriteBadRequest(w, "Contacts are required")
		return
	}

	opts := service.Options{Level: body.CustomizationLevel, AIContext: body.AIContext}
	processed := c.Customizer.ProcessBatch(body.Message, body.Subject, contacts, opts)
	summary := map[string]any{
		"success":            true,
		"processedMessages":  processed,
		"totalContacts":      len(contacts),
		"customizationLevel": body.CustomizationLevel,
	}

	switch {
	case body.SendImmediately:
		// the run outlives a client disconnect
		ctx := context.WithoutCancel(r.Context())
		res, err := c.Campaigns.SendProcessed(ctx, processed, body.MessageType, c.delayFor(body.MessageType, nil))
		if err != nil {
			WriteError(w, c.Log, "Failed to send messages", err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "processed": summary, "sent": res})

	case body.Schedule != nil:
		if c.Tasks == nil {
			WriteBadRequest(w, "scheduling is not enabled")
			return
		}
		name := body.Schedule.Name
		if name == "" {
			name = "AI message " + time.Now().UTC().Format("2006-01-02 15:04")
		}
		task, err := c.Tasks.Create(scheduler.TaskInput{
			Type:               body.MessageType,
			Name:               name,
			Description:        body.Schedule.Description,
			CronExpression:     body.Schedule.CronExpression,
			Timezone:           body.Schedule.Timezone,
			Contacts:           contacts,
			Message:            body.Message,
			Subject:            body.Subject,
			CustomizationLevel: body.CustomizationLevel,
			AIContext:          body.AIContext,
			DelayMs:            body.Schedule.Delay,
		})
		if err != nil {
			WriteError(w, c.Log, "Failed to schedule messages", err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "processed": summary, "scheduled": task})

	default:
		preview := processed
		if len(preview) > 3 {
			preview = preview[:3]
		}
		WriteJSON(w, http.StatusOK, map[string]any{"success": true, "processed": summary, "preview": preview})
	}
}

func (c *MessagingController) SendMessages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProcessedMessages []model.ProcessedMessage `json:"processedMessages"`
		MessageType       model.Channel            `json:"messageType"`
		Delay             *int64                   `json:"delay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if body.ProcessedMessages == nil {
		WriteBadRequest(w, "Processed messages are required")
		return
	}
	if body.MessageType == "" {
		body.MessageType = model.ChannelEmail
	}

	ctx := context.WithoutCancel(r.Context())
	res, err := c.Campaigns.SendProcessed(ctx, body.ProcessedMessages, body.MessageType, c.delayFor(body.MessageType, body.Delay))
	if err != nil {
		WriteError(w, c.Log, "Failed to send messages", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "sent": res})
}

func (c *MessagingController) CustomizationPatterns(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"patterns": c.Customizer.Rules(),
	})
}

func (c *MessagingController) AddCustomizationRule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rule *struct {
			ID          string          `json:"id"`
			Pattern     string          `json:"pattern"`
			Replacement json.RawMessage `json:"replacement"`
			Description string          `json:"description"`
		} `json:"rule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if body.Rule == nil || body.Rule.ID == "" || body.Rule.Pattern == "" ||
		len(body.Rule.Replacement) == 0 || string(body.Rule.Replacement) == "null" {
		WriteBadRequest(w, "Rule must have id, pattern, and replacement")
		return
	}

	var replacement model.Replacement
	if err := json.Unmarshal(body.Rule.Replacement, &replacement); err != nil {
		WriteBadRequest(w, "replacement must be a string or a strategy object")
		return
	}
	err := c.Customizer.AddRule(model.CustomizationRule{
		ID:          body.Rule.ID,
		Pattern:     body.Rule.Pattern,
		Replacement: replacement,
		Description: body.Rule.Description,
	})
	if err != nil {
		WriteError(w, c.Log, "Failed to add customization rule", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Customization rule added successfully",
	})
}

func (c *MessagingController) TestCustomization(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message            string           `json:"message"`
		Contact            model.Contact    `json:"contact"`
		CustomizationLevel model.Level      `json:"customizationLevel"`
		AIContext          *model.AIContext `json:"aiContext"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if body.Message == "" || body.Contact == nil {
		WriteBadRequest(w, "Message and contact are required")
		return
	}

	opts := service.Options{Level: body.CustomizationLevel, AIContext: body.AIContext}
	customized, err := c.Customizer.Customize(body.Message, body.Contact, opts)
	if err != nil {
		WriteError(w, c.Log, "Failed to test customization", err)
		return
	}

	applied := []string{string(model.LevelBasic)}
	if body.CustomizationLevel != model.LevelBasic {
		applied = append(applied, c.Customizer.AppliedCustomizations(body.Message)...)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":               true,
		"original":              body.Message,
		"customized":            customized,
		"appliedCustomizations": applied,
	})
}

func (c *MessagingController) GetContacts(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	contacts, err := c.Contacts.LoadNamed(file)
	if err != nil {
		WriteError(w, c.Log, "Failed to load contacts", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"contacts": contacts,
		"stats":    service.Stats(contacts),
	})
}

func (c *MessagingController) CampaignStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := c.Campaigns.CampaignStats(r.Context(), id)
	if err != nil {
		WriteError(w, c.Log, "Failed to fetch campaign stats", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"campaign_id": id,
		"stats":       stats,
	})
}

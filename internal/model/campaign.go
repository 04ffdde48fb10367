// internal/model/campaign.go
package model

import (
	"strings"
	"time"
)

// Level selects how rich message customization is.
type Level string

const (
	LevelBasic    Level = "basic"
	LevelFull     Level = "full"
	LevelAdvanced Level = "advanced"
)

func (l Level) Valid() bool {
	return l == LevelBasic || l == LevelFull || l == LevelAdvanced
}

// AIContext is caller-supplied auxiliary data used only for substitution.
type AIContext struct {
	Sentiment    string   `json:"sentiment,omitempty" yaml:"sentiment"`
	Tone         string   `json:"tone,omitempty" yaml:"tone"`
	KeyPoints    []string `json:"keyPoints,omitempty" yaml:"keyPoints"`
	CallToAction string   `json:"callToAction,omitempty" yaml:"callToAction"`
}

// Value returns the substitution for an AI context token, or false when absent.
func (a *AIContext) Value(token string) (string, bool) {
	if a == nil {
		return "", false
	}
	switch token {
	case "SENTIMENT_CONTEXT":
		return a.Sentiment, a.Sentiment != ""
	case "TONE_CONTEXT":
		return a.Tone, a.Tone != ""
	case "KEY_POINTS":
		return strings.Join(a.KeyPoints, ", "), len(a.KeyPoints) > 0
	case "CALL_TO_ACTION":
		return a.CallToAction, a.CallToAction != ""
	}
	return "", false
}

// RecipientError itemizes one recipient that failed or was degraded.
type RecipientError struct {
	Contact Contact `json:"contact"`
	Error   string  `json:"error"`
}

// CampaignResult aggregates one campaign run.
// Successful + Failed always equals the number of contacts in the run.
type CampaignResult struct {
	CampaignID string           `json:"campaignId,omitempty"`
	Channel    Channel          `json:"channel,omitempty"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Errors     []RecipientError `json:"errors"`
	Warnings   []RecipientError `json:"warnings,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// ProcessedMessage is a message customized for one contact, ready to deliver.
type ProcessedMessage struct {
	Contact              Contact  `json:"contact"`
	Message              string   `json:"message"`
	Subject              string   `json:"subject,omitempty"`
	CustomizationApplied []string `json:"customizationApplied"`
	Error                string   `json:"error,omitempty"`
}

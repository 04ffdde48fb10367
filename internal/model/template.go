// internal/model/template.go
package model

import "time"

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Template is a reusable, named message body with declared placeholders.
type Template struct {
	Name        string    `json:"name"`
	Type        Channel   `json:"type"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Variables   []string  `json:"variables"`
}

// TemplateSummary is the listing view of a template, without content.
type TemplateSummary struct {
	Name        string    `json:"name"`
	Type        Channel   `json:"type"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Template) Summary() TemplateSummary {
	return TemplateSummary{
		Name:        t.Name,
		Type:        t.Type,
		Description: t.Description,
		Subject:     t.Subject,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TemplatePreview shows a template before and after personalization.
type TemplatePreview struct {
	Name                string   `json:"name"`
	Type                Channel  `json:"type"`
	OriginalSubject     string   `json:"originalSubject"`
	PersonalizedSubject string   `json:"personalizedSubject"`
	OriginalContent     string   `json:"originalContent"`
	PersonalizedContent string   `json:"personalizedContent"`
	Variables           []string `json:"variables"`
	SampleContact       Contact  `json:"sampleContact"`
}

// TemplateExport is the on-disk shape of a bulk template export.
type TemplateExport struct {
	ExportedAt time.Time   `json:"exportedAt"`
	Templates  []*Template `json:"templates"`
}

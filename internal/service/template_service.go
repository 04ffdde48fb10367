// internal/service/template_service.go
package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
)

// Personalizer applies basic {{field}} substitution. *Customizer implements it.
type Personalizer interface {
	Personalize(message string, contact model.Contact) string
}

// TemplateInput is the caller-supplied part of a template.
type TemplateInput struct {
	Name        string        `json:"name"`
	Type        model.Channel `json:"type"`
	Subject     string        `json:"subject"`
	Description string        `json:"description"`
	Content     string        `json:"content"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
}

// ImportResult counts the outcome of a bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

var templateName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TemplateService is the in-memory index over persisted templates. Reads use the
// latest snapshot without locking; writes are serialized and swap in a new snapshot.
type TemplateService struct {
	Repo         repository.TemplateRepositoryInterface
	Personalizer Personalizer
	Log          *logger.Logger
	Now          func() time.Time

	writeMu sync.Mutex
	index   atomic.Pointer[map[string]*model.Template]
}

func NewTemplateService(repo repository.TemplateRepositoryInterface, p Personalizer, log *logger.Logger) *TemplateService {
	if log == nil {
		log = logger.Nop()
	}
	s := &TemplateService{
		Repo:         repo,
		Personalizer: p,
		Log:          log.WithComponent("template_service"),
		Now:          time.Now,
	}
	empty := map[string]*model.Template{}
	s.index.Store(&empty)
	return s
}

// Load replaces the in-memory index with every persisted template.
func (s *TemplateService) Load() error {
	templates, err := s.Repo.LoadAll()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := make(map[string]*model.Template, len(templates))
	for _, t := range templates {
		next[t.Name] = t
	}
	s.index.Store(&next)
	return nil
}

func (s *TemplateService) snapshot() map[string]*model.Template {
	return *s.index.Load()
}

func (s *TemplateService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Save validates, fills defaults, recomputes variables and persists a template.
// Re-saving an existing name updates it and keeps its creation time.
func (s *TemplateService) Save(in TemplateInput) (*model.Template, error) {
	now := s.now().UTC()
	t := &model.Template{
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		Subject:     in.Subject,
		Description: in.Description,
		Content:     in.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Type == "" {
		t.Type = model.ChannelEmail
	}
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		t.CreatedAt = in.CreatedAt.UTC()
	}
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	t.Variables = ExtractVariables(t.Content, t.Subject)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.snapshot()
	if existing, ok := current[t.Name]; ok && in.CreatedAt == nil {
		t.CreatedAt = existing.CreatedAt
	}
	if err := s.Repo.Save(t); err != nil {
		s.Log.Error().Err(err).Str("template", t.Name).Msg("failed to persist template")
		return nil, err
	}

	next := make(map[string]*model.Template, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[t.Name] = t
	s.index.Store(&next)

	s.Log.Info().Str("template", t.Name).Strs("variables", t.Variables).Msg("saved template")
	return copyTemplate(t), nil
}

// validateTemplate returns the first rule the template violates.
func validateTemplate(t *model.Template) error {
	switch {
	case t.Name == "":
		return appErrors.NewValidation("Template name is required")
	case !templateName.MatchString(t.Name):
		return appErrors.NewValidation("Template name can only contain letters, numbers, underscores, and hyphens")
	case !t.Type.Valid():
		return appErrors.NewValidation("Template type must be email or sms")
	case strings.TrimSpace(t.Content) == "":
		return appErrors.NewValidation("Template content is required")
	case t.Type == model.ChannelEmail && strings.TrimSpace(t.Subject) == "":
		return appErrors.NewValidation("Email templates require a subject")
	}
	if bad := invalidPlaceholders(t.Content, t.Subject); len(bad) > 0 {
		return appErrors.NewValidation("Invalid variable syntax: " + bad[0])
	}
	return nil
}

// Get returns a copy of the named template, or false when absent.
func (s *TemplateService) Get(name string) (*model.Template, bool) {
	t, ok := s.snapshot()[name]
	if !ok {
		return nil, false
	}
	return copyTemplate(t), true
}

// List returns summaries of every template ordered by name.
func (s *TemplateService) List() []model.TemplateSummary {
	current := s.snapshot()
	out := make([]model.TemplateSummary, 0, len(current))
	for _, t := range current {
		out = append(out, t.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *TemplateService) Delete(name string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.snapshot()
	if _, ok := current[name]; !ok {
		return appErrors.NewNotFound("template", name)
	}
	if err := s.Repo.Delete(name); err != nil && !appErrors.IsNotFound(err) {
		return err
	}

	next := make(map[string]*model.Template, len(current))
	for k, v := range current {
		if k != name {
			next[k] = v
		}
	}
	s.index.Store(&next)
	s.Log.Info().Str("template", name).Msg("deleted template")
	return nil
}

// PreviewContact is used when a preview request brings no contact.
func PreviewContact() model.Contact {
	return model.NewContact(map[string]string{
		"name":      "John Doe",
		"firstName": "John",
		"lastName":  "Doe",
		"email":     "john.doe@example.com",
		"phone":     "+1234567890",
		"company":   "Example Corp",
		"address":   "123 Main St",
		"city":      "Charleston",
		"state":     "SC",
		"zip":       "29401",
	})
}

// Preview renders subject and content against contact, or the built-in sample when contact is empty.
func (s *TemplateService) Preview(name string, contact model.Contact) (*model.TemplatePreview, error) {
	t, ok := s.snapshot()[name]
	if !ok {
		return nil, appErrors.NewNotFound("template", name)
	}
	if len(contact) == 0 {
		contact = PreviewContact()
	}
	return &model.TemplatePreview{
		Name:                t.Name,
		Type:                t.Type,
		OriginalSubject:     t.Subject,
		PersonalizedSubject: s.Personalizer.Personalize(t.Subject, contact),
		OriginalContent:     t.Content,
		PersonalizedContent: s.Personalizer.Personalize(t.Content, contact),
		Variables:           append([]string{}, t.Variables...),
		SampleContact:       contact,
	}, nil
}

// Export writes every template to one JSON document and returns how many were written.
func (s *TemplateService) Export(path string) (int, error) {
	current := s.snapshot()
	doc := &model.TemplateExport{
		ExportedAt: s.now().UTC(),
		Templates:  make([]*model.Template, 0, len(current)),
	}
	for _, t := range current {
		doc.Templates = append(doc.Templates, t)
	}
	sort.Slice(doc.Templates, func(i, j int) bool { return doc.Templates[i].Name < doc.Templates[j].Name })

	if err := s.Repo.WriteExport(path, doc); err != nil {
		return 0, err
	}
	s.Log.Info().Str("path", path).Int("count", len(doc.Templates)).Msg("exported templates")
	return len(doc.Templates), nil
}

// Import saves every template in an export document whose name is not already
// taken. Existing templates are never overwritten.
func (s *TemplateService) Import(path string) (*ImportResult, error) {
	doc, err := s.Repo.ReadExport(path)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{Errors: []string{}}
	for _, t := range doc.Templates {
		if t == nil {
			continue
		}
		if _, exists := s.Get(t.Name); exists {
			res.Skipped++
			continue
		}
		in := TemplateInput{
			Name:        t.Name,
			Type:        t.Type,
			Subject:     t.Subject,
			Description: t.Description,
			Content:     t.Content,
		}
		if !t.CreatedAt.IsZero() {
			created := t.CreatedAt
			in.CreatedAt = &created
		}
		if _, err := s.Save(in); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", t.Name, err))
			continue
		}
		res.Imported++
	}
	s.Log.Info().Str("path", path).Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("imported templates")
	return res, nil
}

// DefaultTemplates are seeded into an empty template store.
func DefaultTemplates() []TemplateInput {
	return []TemplateInput{
		{
			Name:        "welcome_email",
			Type:        model.ChannelEmail,
			Subject:     "Welcome to Holy City Clean Co!",
			Description: "Welcome email for new customers",
			Content: `<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2c5aa0;">Welcome {{firstName}}!</h2>
  <p>Thank you for choosing Holy City Clean Co. We're excited to serve you!</p>
  <p>Your clean is scheduled and we'll be in touch soon with more details.</p>
  <p>If you have any questions, please don't hesitate to contact us at:</p>
  <ul>
    <li>Phone: (843) 555-0123</li>
    <li>Email: info@holycityclean.co</li>
  </ul>
  <p>Best regards,<br>The Holy City Clean Co. Team</p>
</body>
</html>`,
		},
		{
			Name:        "follow_up_sms",
			Type:        model.ChannelSMS,
			Description: "Follow-up SMS after service",
			Content:     "Hi {{firstName}}! Hope you're happy with your clean today. Rate us 5 stars if you loved it! Reply STOP to opt out.",
		},
		{
			Name:        "service_reminder",
			Type:        model.ChannelEmail,
			Subject:     "Your Clean is Scheduled - Holy City Clean Co",
			Description: "Service reminder email",
			Content: `<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2c5aa0;">Service Reminder</h2>
  <p>Hello {{firstName}},</p>
  <p>This is a friendly reminder that your cleaning service is scheduled.</p>
  <p>We'll be at your location at the scheduled time. If you need to make any changes, please call us at (843) 555-0123.</p>
  <p>Thank you for choosing Holy City Clean Co!</p>
  <p>Best regards,<br>The Holy City Clean Co. Team</p>
</body>
</html>`,
		},
	}
}

// SeedDefaults saves the default templates when the store is empty and reports how many were added.
func (s *TemplateService) SeedDefaults() (int, error) {
	if len(s.snapshot()) > 0 {
		return 0, nil
	}
	n := 0
	for _, in := range DefaultTemplates() {
		if _, err := s.Save(in); err != nil {
			return n, err
		}
		n++
	}
	s.Log.Info().Int("count", n).Msg("created default templates")
	return n, nil
}

func copyTemplate(t *model.Template) *model.Template {
	out := *t
	out.Variables = append([]string{}, t.Variables...)
	return &out
}

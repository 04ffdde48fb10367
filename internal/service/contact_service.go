// internal/service/contact_service.go
package service

import (
	"strings"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
)

// KeyStrategy picks the field that identifies a contact when deduplicating or merging.
type KeyStrategy string

const (
	KeyEmail KeyStrategy = "email"
	KeyPhone KeyStrategy = "phone"
	KeyName  KeyStrategy = "name"
)

func ParseKeyStrategy(s string) (KeyStrategy, error) {
	switch KeyStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyEmail:
		return KeyEmail, nil
	case KeyPhone:
		return KeyPhone, nil
	case KeyName:
		return KeyName, nil
	}
	return "", appErrors.NewValidation("unknown key strategy: " + s)
}

// ContactKey returns the normalized identity of a contact, or "" when the field is absent.
func ContactKey(c model.Contact, strategy KeyStrategy) string {
	switch strategy {
	case KeyPhone:
		return model.DigitsOnly(c.Phone())
	case KeyName:
		return strings.ToLower(c.Name())
	}
	return strings.ToLower(c.Email())
}

// ContactStats summarizes a contact collection.
type ContactStats struct {
	Total        int `json:"total"`
	WithEmail    int `json:"withEmail"`
	WithPhone    int `json:"withPhone"`
	WithBoth     int `json:"withBoth"`
	InvalidEmail int `json:"invalidEmail"`
	InvalidPhone int `json:"invalidPhone"`
}

type ContactService struct {
	Repo repository.ContactRepositoryInterface
	Log  *logger.Logger
}

func NewContactService(repo repository.ContactRepositoryInterface, log *logger.Logger) *ContactService {
	if log == nil {
		log = logger.Nop()
	}
	return &ContactService{Repo: repo, Log: log.WithComponent("contact_service")}
}

func (s *ContactService) Load(path string) ([]model.Contact, error) {
	return s.Repo.Load(path)
}

// LoadNamed loads a contact source by name from the configured contacts directory.
func (s *ContactService) LoadNamed(name string) ([]model.Contact, error) {
	path, err := s.Repo.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.Repo.Load(path)
}

func (s *ContactService) Save(contacts []model.Contact, path string, appendRows bool) error {
	return s.Repo.Save(contacts, path, repository.SaveOptions{Append: appendRows})
}

// Dedupe keeps the first contact seen per key. Contacts without a key are dropped.
func (s *ContactService) Dedupe(contacts []model.Contact, strategy KeyStrategy) []model.Contact {
	out := Dedupe(contacts, strategy)
	s.Log.Info().Int("before", len(contacts)).Int("after", len(out)).Str("key", string(strategy)).Msg("deduplicated contacts")
	return out
}

func Dedupe(contacts []model.Contact, strategy KeyStrategy) []model.Contact {
	seen := make(map[string]bool, len(contacts))
	out := make([]model.Contact, 0, len(contacts))
	for _, c := range contacts {
		key := ContactKey(c, strategy)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.Clone())
	}
	return out
}

// Merge unions a and b by key. For a key in both, b only fills fields that are empty in a.
// Neither input is modified.
func Merge(a, b []model.Contact, strategy KeyStrategy) []model.Contact {
	index := make(map[string]int, len(a)+len(b))
	out := make([]model.Contact, 0, len(a)+len(b))

	for _, c := range a {
		key := ContactKey(c, strategy)
		if key == "" {
			continue
		}
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(out)
		out = append(out, c.Clone())
	}

	for _, c := range b {
		key := ContactKey(c, strategy)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, c.Clone())
			continue
		}
		existing := out[i]
		for field, v := range c {
			if v != "" && strings.TrimSpace(existing[field]) == "" {
				existing[field] = v
			}
		}
	}
	return out
}

// Stats counts contacts with email and phone, and how many of those fail validation.
func Stats(contacts []model.Contact) ContactStats {
	st := ContactStats{Total: len(contacts)}
	for _, c := range contacts {
		email, phone := c.Email(), c.Phone()
		if email != "" {
			st.WithEmail++
			if !model.IsValidEmail(email) {
				st.InvalidEmail++
			}
		}
		if phone != "" {
			st.WithPhone++
			if !model.IsValidPhone(phone) {
				st.InvalidPhone++
			}
		}
		if email != "" && phone != "" {
			st.WithBoth++
		}
	}
	return st
}

// Filter keeps contacts whose every filtered field contains the filter value, case-insensitively.
func Filter(contacts []model.Contact, filters map[string]string) []model.Contact {
	out := []model.Contact{}
	for _, c := range contacts {
		match := true
		for field, want := range filters {
			got := c.Get(field)
			if got == "" || !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
				match = false
				break
			}
		}
		if match {
			out = append(out, c)
		}
	}
	return out
}

// Validate lists every problem that would make a contact unusable.
func Validate(c model.Contact) []string {
	var problems []string
	if c.Name() == "" {
		problems = append(problems, "Name is required")
	}
	email, phone := c.Email(), c.Phone()
	if email == "" && phone == "" {
		problems = append(problems, "Either email or phone is required")
	}
	if email != "" && !model.IsValidEmail(email) {
		problems = append(problems, "Invalid email format")
	}
	if phone != "" && !model.IsValidPhone(phone) {
		problems = append(problems, "Invalid phone format")
	}
	return problems
}

// SampleContacts are written by CreateSample and used by template previews.
func SampleContacts() []model.Contact {
	return []model.Contact{
		{
			"name": "John Doe", "email": "john.doe@example.com", "phone": "+1234567890",
			"company": "Example Corp", "address": "123 Main St", "city": "Charleston",
			"state": "SC", "zip": "29401", "notes": "Sample contact",
		},
		{
			"name": "Jane Smith", "email": "jane.smith@example.com", "phone": "+1987654321",
			"company": "Test Company", "address": "456 Oak Ave", "city": "Charleston",
			"state": "SC", "zip": "29407", "notes": "Another sample contact",
		},
	}
}

// CreateSample writes the sample contacts to path.
func (s *ContactService) CreateSample(path string) error {
	if err := s.Repo.Save(SampleContacts(), path, repository.SaveOptions{}); err != nil {
		return err
	}
	s.Log.Info().Str("path", path).Msg("created sample contacts")
	return nil
}

// internal/service/customizer.go
package service

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

// Options selects how a message is customized for one contact.
type Options struct {
	Level     model.Level
	AIContext *model.AIContext
}

const (
	reengagementThresholdDays = 30
	urgencyThresholdDays      = 90
)

var defaultOffers = []string{
	"10% off your next service",
	"Free consultation for new customers",
	"Priority booking for returning customers",
}

// DefaultRules is the rule set every Customizer starts with.
func DefaultRules() []model.CustomizationRule {
	return []model.CustomizationRule{
		{
			ID:          "greeting",
			Pattern:     "[GREETING]",
			Replacement: model.Replacement{Strategy: model.StrategyTimeGreeting},
			Description: "Dynamic greeting based on time of day and contact name",
		},
		{
			ID:          "formal_greeting",
			Pattern:     "[FORMAL_GREETING]",
			Replacement: model.Replacement{Strategy: model.StrategyTemplate, Value: "Dear {{name}},"},
			Description: "Formal greeting with full name",
		},
		{
			ID:          "company_context",
			Pattern:     "[COMPANY_CONTEXT]",
			Replacement: model.Replacement{Strategy: model.StrategyField, Field: model.FieldCompany, Fallback: "your business"},
			Description: "Company name or business reference",
		},
		{
			ID:          "location_context",
			Pattern:     "[LOCATION_CONTEXT]",
			Replacement: model.Replacement{Strategy: model.StrategyLocation, Fallback: "your area"},
			Description: "City and state information",
		},
		{
			ID:      "service_history",
			Pattern: "[SERVICE_HISTORY]",
			Replacement: model.Replacement{
				Strategy: model.StrategyFlag,
				Field:    "previousService",
				IfSet:    "returning customer",
				IfEmpty:  "new customer",
			},
			Description: "Previous service history context",
		},
		{
			ID:          "personalized_offer",
			Pattern:     "[PERSONALIZED_OFFER]",
			Replacement: model.Replacement{Strategy: model.StrategyOffer, Options: append([]string(nil), defaultOffers...)},
			Description: "Personalized offer picked from the contact profile",
		},
		{
			ID:      "urgency_context",
			Pattern: "[URGENCY_CONTEXT]",
			Replacement: model.Replacement{
				Strategy:      model.StrategyUrgency,
				Field:         "lastServiceDate",
				IfSet:         "Limited time offer",
				IfEmpty:       "Special offer",
				ThresholdDays: urgencyThresholdDays,
			},
			Description: "Time-sensitive urgency messaging",
		},
	}
}

// Customizer personalizes messages per contact in three levels:
// basic {{field}} substitution, registered [TOKEN] rules plus AI context,
// and advanced behavioral, temporal and relationship wording.
type Customizer struct {
	// Now is the clock used for time-of-day wording. Defaults to time.Now.
	Now func() time.Time
	Log *logger.Logger

	mu    sync.RWMutex
	rules []model.CustomizationRule
}

func NewCustomizer(log *logger.Logger) *Customizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Customizer{
		Now:   time.Now,
		Log:   log.WithComponent("customizer"),
		rules: DefaultRules(),
	}
}

// AddRule registers a rule. A rule with an existing id replaces the earlier one in place.
func (c *Customizer) AddRule(rule model.CustomizationRule) error {
	if problems := rule.Validate(); len(problems) > 0 {
		return appErrors.NewValidation(problems...)
	}
	rule.Pattern = "[" + rule.Token() + "]"
	if rule.Description == "" {
		rule.Description = "Custom pattern"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.rules {
		if c.rules[i].ID == rule.ID {
			c.rules[i] = rule
			c.Log.Info().Str("rule", rule.ID).Msg("replaced customization rule")
			return nil
		}
	}
	c.rules = append(c.rules, rule)
	c.Log.Info().Str("rule", rule.ID).Msg("added customization rule")
	return nil
}

// Rules lists the registered rules in registration order.
func (c *Customizer) Rules() []model.RuleDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.RuleDescriptor, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, model.RuleDescriptor{
			ID:          r.ID,
			Pattern:     r.Pattern,
			Strategy:    r.Replacement.Strategy,
			Description: r.Description,
		})
	}
	return out
}

type rulesFile struct {
	Rules []model.CustomizationRule `yaml:"rules"`
}

// LoadRulesFile registers every rule listed in a YAML document of the form
// `rules: [{id, pattern, replacement, description}]`.
func (c *Customizer) LoadRulesFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, appErrors.NewNotFound("rules file", path)
		}
		return 0, appErrors.NewPersistence("read rules file", err)
	}
	var doc rulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, &appErrors.ParseError{Path: path, Err: err}
	}
	for i, rule := range doc.Rules {
		if err := c.AddRule(rule); err != nil {
			return i, fmt.Errorf("rule %d in %s: %w", i+1, path, err)
		}
	}
	return len(doc.Rules), nil
}

func (c *Customizer) snapshot() map[string]model.CustomizationRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byToken := make(map[string]model.CustomizationRule, len(c.rules))
	for _, r := range c.rules {
		if _, taken := byToken[r.Token()]; !taken {
			byToken[r.Token()] = r
		}
	}
	return byToken
}

func (c *Customizer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Personalize applies basic {{field}} substitution only. Bracket tokens are left as written.
func (c *Customizer) Personalize(message string, contact model.Contact) string {
	return render(message, func(kind tokenKind, name string) (string, bool) {
		if kind != curlyToken {
			return "", false
		}
		return basicValue(contact, name)
	})
}

// Customize personalizes message for contact at the requested level.
// An empty level means full.
func (c *Customizer) Customize(message string, contact model.Contact, opts Options) (string, error) {
	level := opts.Level
	if level == "" {
		level = model.LevelFull
	}
	if !level.Valid() {
		return "", appErrors.NewValidation("unknown customization level: " + string(level))
	}
	if level == model.LevelBasic {
		return c.Personalize(message, contact), nil
	}

	rules := c.snapshot()
	now := c.now()
	var failure error

	out := render(message, func(kind tokenKind, name string) (string, bool) {
		if failure != nil {
			return "", false
		}
		if kind == curlyToken {
			return basicValue(contact, name)
		}
		if rule, ok := rules[name]; ok {
			v, err := c.apply(rule, contact, now)
			if err != nil {
				failure = fmt.Errorf("rule %s: %w", rule.ID, err)
				return "", false
			}
			return v, true
		}
		if v, ok := opts.AIContext.Value(name); ok {
			return v, true
		}
		if level == model.LevelAdvanced {
			v, ok, err := advancedValue(name, contact, now)
			if err != nil {
				failure = err
				return "", false
			}
			return v, ok
		}
		return "", false
	})
	if failure != nil {
		return "", failure
	}
	return out, nil
}

// AppliedCustomizations reports the ids of registered rules whose token appears in message.
func (c *Customizer) AppliedCustomizations(message string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := []string{}
	for _, r := range c.rules {
		if strings.Contains(message, "["+r.Token()+"]") {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ProcessBatch customizes message and subject for every contact. A contact whose
// customization fails gets basic personalization and the error recorded.
func (c *Customizer) ProcessBatch(message, subject string, contacts []model.Contact, opts Options) []model.ProcessedMessage {
	applied := []string{string(model.LevelBasic)}
	if opts.Level != model.LevelBasic {
		applied = append(applied, c.AppliedCustomizations(message)...)
	}

	out := make([]model.ProcessedMessage, 0, len(contacts))
	for _, contact := range contacts {
		msg, err := c.Customize(message, contact, opts)
		subj := ""
		if err == nil && subject != "" {
			subj, err = c.Customize(subject, contact, opts)
		}
		if err != nil {
			c.Log.Warn().Err(err).Str("contact", contact.Label()).Msg("customization failed, using basic personalization")
			out = append(out, model.ProcessedMessage{
				Contact:              contact,
				Message:              c.Personalize(message, contact),
				Subject:              c.Personalize(subject, contact),
				CustomizationApplied: []string{string(model.LevelBasic)},
				Error:                err.Error(),
			})
			continue
		}
		out = append(out, model.ProcessedMessage{
			Contact:              contact,
			Message:              msg,
			Subject:              subj,
			CustomizationApplied: append([]string(nil), applied...),
		})
	}
	return out
}

func (c *Customizer) apply(rule model.CustomizationRule, contact model.Contact, now time.Time) (string, error) {
	r := rule.Replacement
	switch r.Strategy {
	case model.StrategyTimeGreeting:
		first := contact.FirstName()
		if first == "" {
			first = "there"
		}
		return fmt.Sprintf("%s, %s!", greetingFor(now), first), nil
	case model.StrategyTemplate:
		return c.Personalize(r.Value, contact), nil
	case model.StrategyField:
		if v := contact.Get(r.Field); v != "" {
			return v, nil
		}
		return r.Fallback, nil
	case model.StrategyLocation:
		city := contact.Get(model.FieldCity)
		if city == "" {
			city = r.Fallback
		}
		if state := contact.Get(model.FieldState); state != "" {
			return city + ", " + state, nil
		}
		return city, nil
	case model.StrategyFlag:
		if contact.Get(r.Field) != "" {
			return r.IfSet, nil
		}
		return r.IfEmpty, nil
	case model.StrategyOffer:
		if len(r.Options) == 0 {
			return "", fmt.Errorf("no offers configured")
		}
		return r.Options[utf8.RuneCountInString(contact.Name())%len(r.Options)], nil
	case model.StrategyUrgency:
		raw := contact.Get(r.Field)
		if raw == "" {
			return r.IfEmpty, nil
		}
		days, err := daysSince(raw, now)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", r.Field, err)
		}
		threshold := r.ThresholdDays
		if threshold <= 0 {
			threshold = urgencyThresholdDays
		}
		if days > threshold {
			return r.IfSet, nil
		}
		return r.IfEmpty, nil
	case model.StrategyLiteral:
		return r.Value, nil
	}
	return "", fmt.Errorf("unknown replacement strategy %q", r.Strategy)
}

// basicValue resolves a {{token}}. The well-known fields always resolve, falling
// back to friendly wording; any other token resolves only to a non-empty contact field.
func basicValue(contact model.Contact, name string) (string, bool) {
	switch name {
	case "name":
		return orDefault(contact.Name(), "Valued Customer"), true
	case "firstName":
		return orDefault(contact.FirstName(), "there"), true
	case "lastName":
		return contact.LastName(), true
	case "email":
		return contact.Email(), true
	case "phone":
		return contact.Phone(), true
	case "company":
		return orDefault(contact.Get(model.FieldCompany), "your business"), true
	case "city":
		return orDefault(contact.Get(model.FieldCity), "your area"), true
	case "state":
		return contact.Get(model.FieldState), true
	}
	if v := contact.Get(name); v != "" {
		return v, true
	}
	return "", false
}

// advancedValue resolves the behavioral, temporal and relationship tokens.
func advancedValue(name string, contact model.Contact, now time.Time) (string, bool, error) {
	switch name {
	case "REENGAGEMENT_CONTEXT":
		raw := contact.Get("lastInteraction")
		if raw == "" {
			return "", true, nil
		}
		days, err := daysSince(raw, now)
		if err != nil {
			return "", false, fmt.Errorf("field lastInteraction: %w", err)
		}
		if days > reengagementThresholdDays {
			return "We miss you!", true, nil
		}
		return "", true, nil
	case "WEEKEND_CONTEXT":
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return "enjoying your weekend", true, nil
		}
		return "having a great week", true, nil
	case "TIME_CONTEXT":
		switch h := now.Hour(); {
		case h < 12:
			return "morning", true, nil
		case h < 17:
			return "afternoon", true, nil
		}
		return "evening", true, nil
	case "TIER_CONTEXT":
		switch strings.ToLower(contact.Get("customerTier")) {
		case "premium":
			return "valued premium customer", true, nil
		case "vip":
			return "VIP customer", true, nil
		}
		return "valued customer", true, nil
	}
	return "", false, nil
}

func greetingFor(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 17:
		return "Good afternoon"
	}
	return "Good evening"
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func daysSince(raw string, now time.Time) (int, error) {
	t, err := parseDate(raw)
	if err != nil {
		return 0, err
	}
	return int(now.Sub(t).Hours() / 24), nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

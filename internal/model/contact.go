// internal/model/contact.go
package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Well-known contact fields. Any other column is kept as a custom field.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldCompany = "company"
	FieldAddress = "address"
	FieldCity    = "city"
	FieldState   = "state"
	FieldZip     = "zip"
	FieldNotes   = "notes"
)

// DefaultFields is the canonical column order used when writing contacts.
var DefaultFields = []string{
	FieldName, FieldEmail, FieldPhone, FieldCompany, FieldAddress,
	FieldCity, FieldState, FieldZip, FieldNotes,
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	spaceRun     = regexp.MustCompile(`\s+`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// Contact is one message recipient. Keys are normalized with NormalizeKey.
type Contact map[string]string

// NormalizeKey lower-cases and trims a field name and joins inner whitespace with "_".
func NormalizeKey(key string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(key)), "_")
}

// NewContact builds a cleaned contact from raw field/value pairs.
// Values are trimmed and empty values dropped.
func NewContact(raw map[string]string) Contact {
	c := make(Contact, len(raw))
	for k, v := range raw {
		key := NormalizeKey(k)
		if key == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		c[key] = v
	}
	return c
}

// Get returns the trimmed value of a field, normalizing the key first.
func (c Contact) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[NormalizeKey(key)])
}

func (c Contact) Name() string  { return c.Get(FieldName) }
func (c Contact) Email() string { return c.Get(FieldEmail) }
func (c Contact) Phone() string { return c.Get(FieldPhone) }

// FirstName prefers an explicit firstName field, falling back to the first word of name.
func (c Contact) FirstName() string {
	if v := c.Get("firstName"); v != "" {
		return v
	}
	parts := strings.Fields(c.Name())
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName prefers an explicit lastName field, falling back to everything after the first word of name.
func (c Contact) LastName() string {
	if v := c.Get("lastName"); v != "" {
		return v
	}
	parts := strings.Fields(c.Name())
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

// Clone returns an independent copy.
func (c Contact) Clone() Contact {
	out := make(Contact, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Label is a short human identifier used in logs and error reports.
func (c Contact) Label() string {
	name := c.Name()
	addr := c.Email()
	if addr == "" {
		addr = c.Phone()
	}
	switch {
	case name != "" && addr != "":
		return fmt.Sprintf("%s (%s)", name, addr)
	case name != "":
		return name
	case addr != "":
		return addr
	}
	return "unknown contact"
}

// UnmarshalJSON accepts any JSON object and stringifies scalar values so
// API callers may send numbers or booleans for custom fields.
func (c *Contact) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			fields[k] = val
		case float64, bool:
			fields[k] = fmt.Sprint(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return err
			}
			fields[k] = string(b)
		}
	}
	*c = NewContact(fields)
	return nil
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// IsValidPhone reports whether s has at least ten digits once non-digits are stripped.
func IsValidPhone(s string) bool {
	return len(DigitsOnly(s)) >= 10
}

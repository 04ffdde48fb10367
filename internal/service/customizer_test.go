package service

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

// Tuesday morning
var fixedNow = time.Date(2025, time.March, 4, 9, 30, 0, 0, time.UTC)

func newTestCustomizer() *Customizer {
	c := NewCustomizer(nil)
	c.Now = func() time.Time { return fixedNow }
	return c
}

func contact(fields map[string]string) model.Contact {
	return model.NewContact(fields)
}

func TestPersonalize_Basic(t *testing.T) {
	c := newTestCustomizer()
	john := contact(map[string]string{"name": "John Doe"})

	assert.Equal(t, "Welcome John!", c.Personalize("Welcome {{firstName}}!", john))
	assert.Equal(t, "Hi John, thanks!", c.Personalize("Hi {{firstName}}, thanks!", john))
	assert.Equal(t, "Doe", c.Personalize("{{lastName}}", john))
}

func TestPersonalize_Fallbacks(t *testing.T) {
	c := newTestCustomizer()
	empty := contact(nil)

	got := c.Personalize("{{name}} at {{company}} in {{city}}, hi {{firstName}}", empty)
	assert.Equal(t, "Valued Customer at your business in your area, hi there", got)
}

func TestPersonalize_UnknownAndBracketTokensUntouched(t *testing.T) {
	c := newTestCustomizer()
	john := contact(map[string]string{"name": "John Doe"})

	msg := "[GREETING] {{unknownField}} [COMPANY_CONTEXT]"
	assert.Equal(t, msg, c.Personalize(msg, john))

	out, err := c.Customize(msg, john, Options{Level: model.LevelBasic})
	require.NoError(t, err)
	assert.Equal(t, msg, out)
}

func TestPersonalize_CustomField(t *testing.T) {
	c := newTestCustomizer()
	ct := contact(map[string]string{"name": "Ann", "Favorite Color": "teal"})
	assert.Equal(t, "teal", c.Personalize("{{favorite_color}}", ct))
	assert.Equal(t, "Zip {{zip}}", c.Personalize("Zip {{zip}}", ct), "fields the contact lacks stay literal")
	assert.Equal(t, "Zip 29401", c.Personalize("Zip {{zip}}", contact(map[string]string{"name": "Ann", "zip": "29401"})))
}

func TestRender_NoResubstitution(t *testing.T) {
	c := newTestCustomizer()
	tricky := contact(map[string]string{"name": "{{email}} [GREETING]", "email": "x@example.com"})

	out, err := c.Customize("Hello {{name}}", tricky, Options{Level: model.LevelFull})
	require.NoError(t, err)
	assert.Equal(t, "Hello {{email}} [GREETING]", out)
}

func TestCustomize_FullAppliesRulesAndAIContext(t *testing.T) {
	c := newTestCustomizer()
	ct := contact(map[string]string{
		"name":            "Jane Smith",
		"company":         "Acme",
		"city":            "Charleston",
		"state":           "SC",
		"previousService": "yes",
	})
	ai := &model.AIContext{Tone: "friendly", KeyPoints: []string{"fast", "clean"}}

	msg := "[GREETING] [FORMAL_GREETING] [COMPANY_CONTEXT] in [LOCATION_CONTEXT], a [SERVICE_HISTORY]. " +
		"[TONE_CONTEXT]: [KEY_POINTS]. [SENTIMENT_CONTEXT] [TIME_CONTEXT]"
	out, err := c.Customize(msg, ct, Options{Level: model.LevelFull, AIContext: ai})
	require.NoError(t, err)

	want := "Good morning, Jane! Dear Jane Smith, Acme in Charleston, SC, a returning customer. " +
		"friendly: fast, clean. [SENTIMENT_CONTEXT] [TIME_CONTEXT]"
	assert.Equal(t, want, out)
}

func TestCustomize_Advanced(t *testing.T) {
	c := newTestCustomizer()
	ct := contact(map[string]string{
		"name":            "Jane",
		"customerTier":    "VIP",
		"lastInteraction": "2025-01-01",
	})

	out, err := c.Customize("[REENGAGEMENT_CONTEXT] [WEEKEND_CONTEXT] [TIME_CONTEXT] [TIER_CONTEXT]", ct,
		Options{Level: model.LevelAdvanced})
	require.NoError(t, err)
	assert.Equal(t, "We miss you! having a great week morning VIP customer", out)

	recent := contact(map[string]string{"name": "Jane", "lastInteraction": "2025-03-01"})
	out, err = c.Customize("[REENGAGEMENT_CONTEXT]|[TIER_CONTEXT]", recent, Options{Level: model.LevelAdvanced})
	require.NoError(t, err)
	assert.Equal(t, "|valued customer", out)
}

func TestCustomize_UnparsableDateFails(t *testing.T) {
	c := newTestCustomizer()
	ct := contact(map[string]string{"name": "Jane", "lastServiceDate": "not a date"})

	_, err := c.Customize("[URGENCY_CONTEXT]", ct, Options{Level: model.LevelFull})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "urgency_context")
}

func TestCustomize_UnknownLevel(t *testing.T) {
	_, err := newTestCustomizer().Customize("hi", nil, Options{Level: "extreme"})
	assert.True(t, appErrors.IsValidation(err))
}

func TestAddRule(t *testing.T) {
	c := newTestCustomizer()

	err := c.AddRule(model.CustomizationRule{
		ID:          "season",
		Pattern:     "season_greeting",
		Replacement: model.Replacement{Strategy: model.StrategyLiteral, Value: "Happy spring"},
	})
	require.NoError(t, err)

	out, err := c.Customize("[SEASON_GREETING], {{firstName}}", contact(map[string]string{"name": "Bo"}), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Happy spring, Bo", out)

	rules := c.Rules()
	last := rules[len(rules)-1]
	assert.Equal(t, "[SEASON_GREETING]", last.Pattern)
	assert.Equal(t, "Custom pattern", last.Description)

	// same id replaces in place
	require.NoError(t, c.AddRule(model.CustomizationRule{
		ID:          "season",
		Pattern:     "[SEASON_GREETING]",
		Replacement: model.Replacement{Strategy: model.StrategyLiteral, Value: "Happy fall"},
	}))
	assert.Len(t, c.Rules(), len(rules))
	out, err = c.Customize("[SEASON_GREETING]", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Happy fall", out)

	err = c.AddRule(model.CustomizationRule{ID: "broken", Pattern: "[X]"})
	assert.True(t, appErrors.IsValidation(err))
}

func TestAppliedCustomizations(t *testing.T) {
	c := newTestCustomizer()
	got := c.AppliedCustomizations("[GREETING] and [URGENCY_CONTEXT] but not [NOPE]")
	if diff := cmp.Diff([]string{"greeting", "urgency_context"}, got); diff != "" {
		t.Errorf("applied customizations mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, c.AppliedCustomizations("plain"))
}

func TestProcessBatch_FallbackPerContact(t *testing.T) {
	c := newTestCustomizer()
	contacts := []model.Contact{
		contact(map[string]string{"name": "Good One", "email": "a@example.com"}),
		contact(map[string]string{"name": "Bad Date", "email": "b@example.com", "lastServiceDate": "soon"}),
	}

	out := c.ProcessBatch("Hi {{firstName}} [URGENCY_CONTEXT]", "For {{firstName}}", contacts, Options{Level: model.LevelFull})
	require.Len(t, out, 2)

	assert.Equal(t, "Hi Good Special offer", out[0].Message)
	assert.Equal(t, "For Good", out[0].Subject)
	assert.Equal(t, []string{"basic", "urgency_context"}, out[0].CustomizationApplied)
	assert.Empty(t, out[0].Error)

	assert.Equal(t, "Hi Bad [URGENCY_CONTEXT]", out[1].Message)
	assert.Equal(t, "For Bad", out[1].Subject)
	assert.Equal(t, []string{"basic"}, out[1].CustomizationApplied)
	assert.NotEmpty(t, out[1].Error)
}

func TestLoadRulesFile(t *testing.T) {
	path := t.TempDir() + "/rules.yaml"
	doc := strings.Join([]string{
		"rules:",
		"  - id: signoff",
		"    pattern: \"[SIGNOFF]\"",
		"    replacement: \"Cheers, {{company}}\"",
		"  - id: vip_flag",
		"    pattern: \"[VIP_NOTE]\"",
		"    replacement:",
		"      strategy: flag",
		"      field: vip",
		"      ifSet: \"as a VIP\"",
		"      ifEmpty: \"\"",
	}, "\n")
	require.NoError(t, writeFile(path, doc))

	c := newTestCustomizer()
	n, err := c.LoadRulesFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := c.Customize("[SIGNOFF] [VIP_NOTE]", contact(map[string]string{"company": "Acme", "vip": "1"}), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Cheers, Acme as a VIP", out)

	_, err = c.LoadRulesFile(t.TempDir() + "/missing.yaml")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("Hi {{firstName}}, your {{ company }} and {{firstName}} again {{}}", "{{city}} {{company}}")
	if diff := cmp.Diff([]string{"firstName", "company", "city"}, got); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{}, ExtractVariables("no placeholders"))
}

func TestInvalidPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"{{first name}}", "{{ }}"}, invalidPlaceholders("{{first name}} {{ok}} {{ }}"))
	assert.Empty(t, invalidPlaceholders("{{ok}}"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

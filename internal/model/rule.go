// internal/model/rule.go
package model

import (
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy names a replacement computation. The set is closed so rules stay serializable.
type Strategy string

const (
	// "Good morning, John!"
	StrategyTimeGreeting Strategy = "time_greeting"
	// Value rendered with basic {{...}} personalization.
	StrategyTemplate Strategy = "template"
	// Contact field with Fallback when empty.
	StrategyField Strategy = "field"
	// "City, ST" with Fallback when city is empty.
	StrategyLocation Strategy = "location"
	// IfSet when Field is non-empty, IfEmpty otherwise.
	StrategyFlag Strategy = "flag"
	// One of Options picked deterministically from the contact name.
	StrategyOffer Strategy = "offer"
	// IfSet ("Limited time offer") when Field is a date older than ThresholdDays, IfEmpty otherwise.
	StrategyUrgency Strategy = "urgency"
	// Value verbatim.
	StrategyLiteral Strategy = "literal"
)

var strategies = map[Strategy]bool{
	StrategyTimeGreeting: true,
	StrategyTemplate:     true,
	StrategyField:        true,
	StrategyLocation:     true,
	StrategyFlag:         true,
	StrategyOffer:        true,
	StrategyUrgency:      true,
	StrategyLiteral:      true,
}

func (s Strategy) Valid() bool { return strategies[s] }

// Replacement describes how a rule computes its substituted text.
type Replacement struct {
	Strategy      Strategy `json:"strategy" yaml:"strategy"`
	Value         string   `json:"value,omitempty" yaml:"value,omitempty"`
	Field         string   `json:"field,omitempty" yaml:"field,omitempty"`
	Fallback      string   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	IfSet         string   `json:"ifSet,omitempty" yaml:"ifSet,omitempty"`
	IfEmpty       string   `json:"ifEmpty,omitempty" yaml:"ifEmpty,omitempty"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty"`
	ThresholdDays int      `json:"thresholdDays,omitempty" yaml:"thresholdDays,omitempty"`
}

type replacementAlias Replacement

// UnmarshalJSON treats a bare string as a template replacement.
func (r *Replacement) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Replacement{Strategy: StrategyTemplate, Value: s}
		return nil
	}
	var alias replacementAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = Replacement(alias)
	return nil
}

func (r *Replacement) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*r = Replacement{Strategy: StrategyTemplate, Value: node.Value}
		return nil
	}
	var alias replacementAlias
	if err := node.Decode(&alias); err != nil {
		return err
	}
	*r = Replacement(alias)
	return nil
}

// CustomizationRule maps a bracketed token such as [GREETING] to a replacement.
type CustomizationRule struct {
	ID          string      `json:"id" yaml:"id"`
	Pattern     string      `json:"pattern" yaml:"pattern"`
	Replacement Replacement `json:"replacement" yaml:"replacement"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

var tokenName = regexp.MustCompile(`^[A-Z0-9_]+$`)

// Token returns the bare token name the rule matches ("[GREETING]" -> "GREETING").
func (r CustomizationRule) Token() string {
	return PatternToken(r.Pattern)
}

// PatternToken normalizes a rule pattern to its bare upper-case token name.
func PatternToken(pattern string) string {
	p := strings.TrimSpace(pattern)
	p = strings.TrimPrefix(p, "[")
	p = strings.TrimSuffix(p, "]")
	return strings.ToUpper(strings.TrimSpace(p))
}

// Validate returns every problem with the rule.
func (r CustomizationRule) Validate() []string {
	var problems []string
	if strings.TrimSpace(r.ID) == "" {
		problems = append(problems, "rule id is required")
	}
	if strings.TrimSpace(r.Pattern) == "" {
		problems = append(problems, "rule pattern is required")
	} else if !tokenName.MatchString(r.Token()) {
		problems = append(problems, "rule pattern must be a bracket token like [MY_TOKEN]")
	}
	switch {
	case r.Replacement.Strategy == "":
		problems = append(problems, "rule replacement is required")
	case !r.Replacement.Strategy.Valid():
		problems = append(problems, "unknown replacement strategy: "+string(r.Replacement.Strategy))
	case r.Replacement.Strategy == StrategyOffer && len(r.Replacement.Options) == 0:
		problems = append(problems, "offer replacement needs at least one option")
	case (r.Replacement.Strategy == StrategyField || r.Replacement.Strategy == StrategyFlag ||
		r.Replacement.Strategy == StrategyUrgency) && r.Replacement.Field == "":
		problems = append(problems, "replacement strategy "+string(r.Replacement.Strategy)+" needs a field")
	}
	return problems
}

// RuleDescriptor is the listing view of a registered rule.
type RuleDescriptor struct {
	ID          string   `json:"id"`
	Pattern     string   `json:"pattern"`
	Strategy    Strategy `json:"strategy"`
	Description string   `json:"description"`
}
